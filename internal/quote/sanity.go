package quote

import (
	"fmt"

	"marketmaker/internal/errors"
	"marketmaker/internal/model"
	"marketmaker/pkg/exception"
)

// CheckSanity rejects a ladder whose innermost buy reaches the best ask or whose
// innermost sell reaches the best bid.
func CheckSanity(ladder model.Ladder, ticker model.Ticker) error {
	if len(ladder.Buys) > 0 && ladder.Buys[0].Price >= ticker.BestSell {
		return errors.Wrap(exception.ErrSanityCheck,
			fmt.Sprintf("buy %.8g >= best sell %.8g", ladder.Buys[0].Price, ticker.BestSell))
	}
	if len(ladder.Sells) > 0 && ladder.Sells[0].Price <= ticker.BestBuy {
		return errors.Wrap(exception.ErrSanityCheck,
			fmt.Sprintf("sell %.8g <= best buy %.8g", ladder.Sells[0].Price, ticker.BestBuy))
	}
	return nil
}
