package enum

import "strings"

// InstrumentState open, closed
type InstrumentState uint8

const (
	_instrument_state_beg InstrumentState = iota
	InstrumentStateOpen
	InstrumentStateClosed
	_instrument_state_end
)

func (s InstrumentState) IsAvailable() bool {
	return s > _instrument_state_beg && s < _instrument_state_end
}

func (s InstrumentState) String() string {
	switch s {
	case InstrumentStateOpen:
		return "Open"
	case InstrumentStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ParseInstrumentState maps anything other than "Open" to closed.
func ParseInstrumentState(s string) InstrumentState {
	if strings.EqualFold(strings.TrimSpace(s), "open") {
		return InstrumentStateOpen
	}
	return InstrumentStateClosed
}

// InstrumentKind linear, quanto, inverse
type InstrumentKind uint8

const (
	_instrument_kind_beg InstrumentKind = iota
	InstrumentKindLinear
	InstrumentKindQuanto
	InstrumentKindInverse
	_instrument_kind_end
)

func (k InstrumentKind) IsAvailable() bool {
	return k > _instrument_kind_beg && k < _instrument_kind_end
}

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentKindLinear:
		return "Linear"
	case InstrumentKindQuanto:
		return "Quanto"
	case InstrumentKindInverse:
		return "Inverse"
	default:
		return "Unknown"
	}
}

func ParseInstrumentKind(s string) InstrumentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quanto":
		return InstrumentKindQuanto
	case "inverse":
		return InstrumentKindInverse
	case "linear", "":
		return InstrumentKindLinear
	default:
		return _instrument_kind_beg
	}
}
