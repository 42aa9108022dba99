package market

import "fmt"

// Symbol describes one tradeable instrument.
type Symbol struct {
	ID       uint32 `json:"id"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	TickSize int32  `json:"tick_size"`
}

// ETFSymbol is the symbol id of the UNDY ETF.
const ETFSymbol uint32 = 13

// Underlyings lists the ETF basket constituents. Order matters: sufficiency
// errors enumerate deficits in this order.
var Underlyings = []uint32{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

// All lists every known symbol in ascending id order.
var All = []Symbol{
	{ID: 1, Ticker: "GOLD", Name: "Gold", TickSize: 10},
	{ID: 2, Ticker: "BLUE", Name: "Blue", TickSize: 5},
	{ID: 3, Ticker: "KNAN", Name: "Keenan Hall", TickSize: 5},
	{ID: 4, Ticker: "STED", Name: "St. Edward's Hall", TickSize: 5},
	{ID: 5, Ticker: "FISH", Name: "Fisher Hall", TickSize: 5},
	{ID: 6, Ticker: "DILN", Name: "Dillon Hall", TickSize: 5},
	{ID: 7, Ticker: "SORN", Name: "Sorin Hall", TickSize: 5},
	{ID: 8, Ticker: "RYAN", Name: "Ryan Hall", TickSize: 5},
	{ID: 9, Ticker: "LYON", Name: "Lyons Hall", TickSize: 5},
	{ID: 10, Ticker: "WLSH", Name: "Walsh Hall", TickSize: 5},
	{ID: 11, Ticker: "LEWI", Name: "Lewis Hall", TickSize: 5},
	{ID: 12, Ticker: "BDIN", Name: "Badin Hall", TickSize: 5},
	{ID: 13, Ticker: "UNDY", Name: "Notre Dame Dorm ETF", TickSize: 10},
}

var byID = func() map[uint32]Symbol {
	m := make(map[uint32]Symbol, len(All))
	for _, s := range All {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the symbol definition for an id.
func Lookup(id uint32) (Symbol, bool) {
	s, ok := byID[id]
	return s, ok
}

// Ticker returns the ticker for an id, or a synthetic SYM<id> for unknown ids.
func Ticker(id uint32) string {
	if s, ok := byID[id]; ok {
		return s.Ticker
	}
	return fmt.Sprintf("SYM%d", id)
}

// ByTicker returns the id for a ticker string.
func ByTicker(ticker string) (uint32, bool) {
	for _, s := range All {
		if s.Ticker == ticker {
			return s.ID, true
		}
	}
	return 0, false
}

// IsUnderlying reports whether id is an ETF basket constituent.
func IsUnderlying(id uint32) bool {
	for _, u := range Underlyings {
		if u == id {
			return true
		}
	}
	return false
}
