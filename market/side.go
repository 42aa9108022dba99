package market

// Side is the wire encoding of an order or fill side.
type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the two wire values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}
