package book

import (
	"cosmossdk.io/errors"
)

// ErrUnknownEngine is returned when a book is configured with an
// engine name that has no registered implementation.
var ErrUnknownEngine = errors.Register("book", 1, "unknown book engine")

// Engine names accepted by New.
const (
	EngineMap      = "map"
	EngineBTree    = "btree"
	EngineSkiplist = "skiplist"
)

// Level is one aggregated price level on a side of a book.
type Level struct {
	Price    int32 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// Engine maintains the aggregate resting quantity per price for one
// side of a symbol's book. A side built with desc=true treats the
// highest price as best (bids); desc=false treats the lowest as best
// (asks). Implementations are not safe for concurrent use: Book
// serializes access to its sides.
type Engine interface {
	// Mutation
	Add(price int32, qty int64)
	Reduce(price int32, qty int64)

	// Query
	Best() (Level, bool)
	Levels(n int) []Level
	Len() int
}

// Verify that all implementations satisfy the interface
var _ Engine = (*mapSide)(nil)
var _ Engine = (*btreeSide)(nil)
var _ Engine = (*skiplistSide)(nil)

// engineFactory resolves an engine name to a side constructor.
func engineFactory(kind string) (func(desc bool) Engine, error) {
	switch kind {
	case EngineMap, "":
		return func(desc bool) Engine { return newMapSide(desc) }, nil
	case EngineBTree:
		return func(desc bool) Engine { return newBTreeSide(desc) }, nil
	case EngineSkiplist:
		return func(desc bool) Engine { return newSkiplistSide(desc) }, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEngine, "%q", kind)
	}
}

// Engines lists the registered engine names.
func Engines() []string {
	return []string{EngineMap, EngineBTree, EngineSkiplist}
}
