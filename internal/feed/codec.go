package feed

import (
	"time"

	"github.com/bytedance/sonic"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
)

const (
	tableQuote      = "quote"
	tableTrade      = "trade"
	tableBook       = "orderBookL2_25"
	tableInstrument = "instrument"

	actionPartial = "partial"
	actionInsert  = "insert"
	actionUpdate  = "update"
	actionDelete  = "delete"
)

// frame covers table pushes, subscription acks, the welcome banner and errors.
type frame struct {
	Table     string `json:"table"`
	Action    string `json:"action"`
	Data      []row  `json:"data"`
	Info      string `json:"info"`
	Success   *bool  `json:"success"`
	Subscribe string `json:"subscribe"`
	Error     string `json:"error"`
}

// row is the union of the fields used from every subscribed table.
type row struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	ID    int64    `json:"id"`
	Side  string   `json:"side"`
	Size  *int64   `json:"size"`
	Price *float64 `json:"price"`

	BidPrice float64 `json:"bidPrice"`
	BidSize  int64   `json:"bidSize"`
	AskPrice float64 `json:"askPrice"`
	AskSize  int64   `json:"askSize"`

	State                 *string  `json:"state"`
	MarkPrice             *float64 `json:"markPrice"`
	IndicativeSettlePrice *float64 `json:"indicativeSettlePrice"`
}

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func encodeSubscribe(symbol string) ([]byte, error) {
	return sonic.Marshal(subscribeRequest{
		Op: "subscribe",
		Args: []string{
			tableInstrument + ":" + symbol,
			tableQuote + ":" + symbol,
			tableTrade + ":" + symbol,
			tableBook + ":" + symbol,
		},
	})
}

func decodeFrame(payload []byte) (frame, error) {
	var f frame
	err := sonic.Unmarshal(payload, &f)
	return f, err
}

func (r row) trade() (model.Trade, bool) {
	if r.Price == nil || r.Size == nil {
		return model.Trade{}, false
	}
	return model.Trade{
		Price: *r.Price,
		Size:  *r.Size,
		Side:  enum.ParseOrderSide(r.Side),
		Time:  r.Timestamp,
	}, true
}

func (r row) size() int64 {
	if r.Size == nil {
		return 0
	}
	return *r.Size
}

func (r row) price() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}
