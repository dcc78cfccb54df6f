/*
Feed consumes the public realtime market stream of one symbol.

Source: instrument, quote, trade and orderBookL2_25 tables over a websocket.

Produce: top of book, depth levels, trade prints and instrument state into a Sink,
which is the paper venue in dry runs.

A dropped connection is reported as ErrStreamDisconnected and never resumed in
place: the supervisor starts a fresh session instead.
*/
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketmaker/internal/errors"
	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/pkg/exception"
)

const (
	DefaultPingInterval = 5 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Sink receives market data from the stream.
type Sink interface {
	OnQuote(bestBuy, bestSell float64)
	OnBook(levels []model.OrderBookLevel)
	OnTrade(tr model.Trade)
	OnInstrument(inst model.Instrument)
	SetConnected(connected bool)
}

type Config struct {
	URL    string
	Symbol string
	// Instrument carries the static metadata; stream updates only change state and prices.
	Instrument   model.Instrument
	Depth        int
	PingInterval time.Duration
	// ReadTimeout defaults to three ping intervals.
	ReadTimeout time.Duration
	Dialer      *websocket.Dialer
}

// Stream is one connection lifetime. Run may be called once.
type Stream struct {
	cfg   Config
	sink  Sink
	book  *Book
	inst  model.Instrument
	ready chan struct{}
}

func NewStream(cfg Config, sink Sink) (*Stream, error) {
	if sink == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.URL == "" || cfg.Symbol == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "feed url and symbol are required")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * cfg.PingInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	inst := cfg.Instrument
	inst.Symbol = cfg.Symbol
	return &Stream{
		cfg:   cfg,
		sink:  sink,
		book:  NewBook(cfg.Depth),
		inst:  inst,
		ready: make(chan struct{}),
	}, nil
}

// Run subscribes and pumps frames into the sink until ctx is done, a shutdown
// signal arrives or the connection drops.
func (s *Stream) Run(ctx context.Context) error {
	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.sink.SetConnected(false)
		return errors.Wrap(exception.ErrStreamDisconnected, fmt.Sprintf("dial %s: %v", s.cfg.URL, err))
	}
	defer conn.Close()

	sub, err := encodeSubscribe(s.cfg.Symbol)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		s.sink.SetConnected(false)
		return errors.Wrap(exception.ErrStreamDisconnected, fmt.Sprintf("subscribe: %v", err))
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	s.sink.SetConnected(true)
	defer s.sink.SetConnected(false)
	close(s.ready)
	logs.Infof("market stream connected, url %s, symbol %s", s.cfg.URL, s.cfg.Symbol)

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(conn)
	}()

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-sys.Shutdown():
			s.close(conn)
			return nil
		case <-ctx.Done():
			s.close(conn)
			return nil
		case err := <-readErr:
			logs.Errorf("market stream closed, err: %+v", err)
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout)); err != nil {
				logs.Warnf("market stream ping, err: %+v", err)
			}
		}
	}
}

// Ready is closed once the subscription is sent.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

func (s *Stream) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultWriteTimeout))
}

func (s *Stream) readLoop(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(exception.ErrStreamDisconnected, err.Error())
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		f, err := decodeFrame(payload)
		if err != nil {
			logs.Warnf("market stream frame skipped, err: %+v", err)
			continue
		}
		if err := s.handle(f); err != nil {
			return err
		}
	}
}

func (s *Stream) handle(f frame) error {
	switch {
	case f.Error != "":
		return errors.Wrap(exception.ErrStreamRejected, f.Error)
	case f.Info != "":
		logs.Infof("market stream: %s", f.Info)
		return nil
	case f.Success != nil:
		logs.Infof("market stream subscribed %s: %v", f.Subscribe, *f.Success)
		return nil
	}

	switch f.Table {
	case tableQuote:
		s.onQuote(f.Data)
	case tableTrade:
		s.onTrade(f.Data)
	case tableBook:
		s.onBook(f.Action, f.Data)
	case tableInstrument:
		s.onInstrument(f.Data)
	}
	return nil
}

func (s *Stream) mine(r row) bool {
	return r.Symbol == "" || r.Symbol == s.cfg.Symbol
}

func (s *Stream) onQuote(rows []row) {
	for i := len(rows) - 1; i >= 0; i-- {
		if s.mine(rows[i]) {
			s.sink.OnQuote(rows[i].BidPrice, rows[i].AskPrice)
			return
		}
	}
}

func (s *Stream) onTrade(rows []row) {
	for _, r := range rows {
		if !s.mine(r) {
			continue
		}
		if tr, ok := r.trade(); ok {
			s.sink.OnTrade(tr)
		}
	}
}

func (s *Stream) onBook(action string, rows []row) {
	if action == actionPartial {
		s.book.Reset()
	}
	for _, r := range rows {
		if !s.mine(r) {
			continue
		}
		switch action {
		case actionPartial, actionInsert:
			s.book.Upsert(r.ID, enum.ParseOrderSide(r.Side), r.price(), r.size())
		case actionUpdate:
			s.book.Update(r.ID, r.size(), r.price())
		case actionDelete:
			s.book.Delete(r.ID)
		}
	}
	s.sink.OnBook(s.book.Levels())
}

func (s *Stream) onInstrument(rows []row) {
	changed := false
	for _, r := range rows {
		if !s.mine(r) {
			continue
		}
		if r.State != nil {
			s.inst.State = enum.ParseInstrumentState(*r.State)
			changed = true
		}
		if r.MarkPrice != nil {
			s.inst.MarkPrice = *r.MarkPrice
			changed = true
		}
		if r.IndicativeSettlePrice != nil {
			s.inst.SettlePrice = *r.IndicativeSettlePrice
			changed = true
		}
	}
	if changed {
		s.sink.OnInstrument(s.inst)
	}
}
