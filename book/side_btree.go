package book

import (
	"github.com/google/btree"
)

// btreeDegree is the branching factor for price-level B-trees.
const btreeDegree = 32

// levelItem is a B-tree item keyed by price.
type levelItem struct {
	price int32
	qty   int64
}

// Less implements btree.Item ordering by price ascending.
func (a *levelItem) Less(b btree.Item) bool {
	return a.price < b.(*levelItem).price
}

// btreeSide keeps levels in a Google B-tree. O(log n) update, O(log n)
// best via the tree extremum.
type btreeSide struct {
	tree *btree.BTree
	desc bool
}

func newBTreeSide(desc bool) *btreeSide {
	return &btreeSide{
		tree: btree.New(btreeDegree),
		desc: desc,
	}
}

func (s *btreeSide) Add(price int32, qty int64) {
	if item := s.tree.Get(&levelItem{price: price}); item != nil {
		item.(*levelItem).qty += qty
		return
	}
	s.tree.ReplaceOrInsert(&levelItem{price: price, qty: qty})
}

func (s *btreeSide) Reduce(price int32, qty int64) {
	item := s.tree.Get(&levelItem{price: price})
	if item == nil {
		return
	}
	level := item.(*levelItem)
	level.qty -= qty
	if level.qty <= 0 {
		s.tree.Delete(level)
	}
}

func (s *btreeSide) Best() (Level, bool) {
	var item btree.Item
	if s.desc {
		item = s.tree.Max()
	} else {
		item = s.tree.Min()
	}
	if item == nil {
		return Level{}, false
	}
	level := item.(*levelItem)
	return Level{Price: level.price, Quantity: level.qty}, true
}

func (s *btreeSide) Levels(n int) []Level {
	out := make([]Level, 0, s.tree.Len())
	visit := func(item btree.Item) bool {
		if n >= 0 && len(out) >= n {
			return false
		}
		level := item.(*levelItem)
		out = append(out, Level{Price: level.price, Quantity: level.qty})
		return true
	}
	if s.desc {
		s.tree.Descend(visit)
	} else {
		s.tree.Ascend(visit)
	}
	return out
}

func (s *btreeSide) Len() int {
	return s.tree.Len()
}
