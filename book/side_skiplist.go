package book

import (
	"github.com/huandu/skiplist"
)

// priceAsc orders ask levels lowest-first.
type priceAsc struct{}

func (priceAsc) Compare(lhs, rhs interface{}) int {
	a, b := lhs.(int32), rhs.(int32)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (priceAsc) CalcScore(key interface{}) float64 {
	return float64(key.(int32))
}

// priceDesc orders bid levels highest-first.
type priceDesc struct{}

func (priceDesc) Compare(lhs, rhs interface{}) int {
	return priceAsc{}.Compare(rhs, lhs)
}

func (priceDesc) CalcScore(key interface{}) float64 {
	return -float64(key.(int32))
}

// skiplistSide keeps levels in a skip list sorted best-first, so the
// best level is always the front element. O(log n) update, O(1) best.
type skiplistSide struct {
	list *skiplist.SkipList
}

func newSkiplistSide(desc bool) *skiplistSide {
	if desc {
		return &skiplistSide{list: skiplist.New(priceDesc{})}
	}
	return &skiplistSide{list: skiplist.New(priceAsc{})}
}

func (s *skiplistSide) Add(price int32, qty int64) {
	if elem := s.list.Get(price); elem != nil {
		level := elem.Value.(*Level)
		level.Quantity += qty
		return
	}
	s.list.Set(price, &Level{Price: price, Quantity: qty})
}

func (s *skiplistSide) Reduce(price int32, qty int64) {
	elem := s.list.Get(price)
	if elem == nil {
		return
	}
	level := elem.Value.(*Level)
	level.Quantity -= qty
	if level.Quantity <= 0 {
		s.list.Remove(price)
	}
}

func (s *skiplistSide) Best() (Level, bool) {
	front := s.list.Front()
	if front == nil {
		return Level{}, false
	}
	return *front.Value.(*Level), true
}

func (s *skiplistSide) Levels(n int) []Level {
	out := make([]Level, 0, s.list.Len())
	for elem := s.list.Front(); elem != nil; elem = elem.Next() {
		if n >= 0 && len(out) >= n {
			break
		}
		out = append(out, *elem.Value.(*Level))
	}
	return out
}

func (s *skiplistSide) Len() int {
	return s.list.Len()
}
