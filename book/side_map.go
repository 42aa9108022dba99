package book

import "sort"

// mapSide keeps levels in a plain hash map and scans for the extremum on
// every query. O(1) update, O(n) best. The baseline engine; fine for books
// with few live levels per side.
type mapSide struct {
	levels map[int32]int64
	desc   bool
}

func newMapSide(desc bool) *mapSide {
	return &mapSide{
		levels: make(map[int32]int64),
		desc:   desc,
	}
}

func (s *mapSide) Add(price int32, qty int64) {
	s.levels[price] += qty
}

func (s *mapSide) Reduce(price int32, qty int64) {
	remaining, ok := s.levels[price]
	if !ok {
		return
	}
	remaining -= qty
	if remaining <= 0 {
		delete(s.levels, price)
		return
	}
	s.levels[price] = remaining
}

func (s *mapSide) Best() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	var best int32
	first := true
	for price := range s.levels {
		if first {
			best = price
			first = false
			continue
		}
		if s.desc && price > best || !s.desc && price < best {
			best = price
		}
	}
	return Level{Price: best, Quantity: s.levels[best]}, true
}

func (s *mapSide) Levels(n int) []Level {
	out := make([]Level, 0, len(s.levels))
	for price, qty := range s.levels {
		out = append(out, Level{Price: price, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if s.desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *mapSide) Len() int {
	return len(s.levels)
}
