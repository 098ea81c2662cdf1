package chain

import (
	"math"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/contactkeval/option-greeks/internal/data"
)

// StrikeBook is an ordered view of a chain's strikes backed by a
// red-black tree: floor/ceiling lookups and windowed traversal around a
// level without rescanning the quote slice.
type StrikeBook struct {
	tree *redblacktree.Tree
}

// NewStrikeBook indexes a chain's quotes by strike.
func NewStrikeBook(quotes []data.StrikeQuote) *StrikeBook {
	t := redblacktree.NewWith(utils.Float64Comparator)
	for _, q := range quotes {
		t.Put(q.Strike, q)
	}
	return &StrikeBook{tree: t}
}

// Len returns the number of distinct strikes.
func (b *StrikeBook) Len() int { return b.tree.Size() }

// Strikes returns all strikes in ascending order.
func (b *StrikeBook) Strikes() []float64 {
	keys := b.tree.Keys()
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(float64))
	}
	return out
}

// Quote returns the quote at an exactly listed strike.
func (b *StrikeBook) Quote(strike float64) (data.StrikeQuote, bool) {
	v, found := b.tree.Get(strike)
	if !found {
		return data.StrikeQuote{}, false
	}
	return v.(data.StrikeQuote), true
}

// Floor returns the quote at the closest strike at or below the level.
func (b *StrikeBook) Floor(level float64) (data.StrikeQuote, bool) {
	node, found := b.tree.Floor(level)
	if !found {
		return data.StrikeQuote{}, false
	}
	return node.Value.(data.StrikeQuote), true
}

// Ceiling returns the quote at the closest strike at or above the level.
func (b *StrikeBook) Ceiling(level float64) (data.StrikeQuote, bool) {
	node, found := b.tree.Ceiling(level)
	if !found {
		return data.StrikeQuote{}, false
	}
	return node.Value.(data.StrikeQuote), true
}

// Nearest returns the quote at the listed strike closest to the level,
// preferring the higher strike when equidistant.
func (b *StrikeBook) Nearest(level float64) (data.StrikeQuote, bool) {
	node := b.nearestNode(level)
	if node == nil {
		return data.StrikeQuote{}, false
	}
	return node.Value.(data.StrikeQuote), true
}

func (b *StrikeBook) nearestNode(level float64) *redblacktree.Node {
	floor, hasFloor := b.tree.Floor(level)
	ceil, hasCeil := b.tree.Ceiling(level)

	switch {
	case !hasFloor && !hasCeil:
		return nil
	case !hasFloor:
		return ceil
	case !hasCeil:
		return floor
	}

	if math.Abs(floor.Key.(float64)-level) < math.Abs(ceil.Key.(float64)-level) {
		return floor
	}
	return ceil
}

// Window returns up to each strikes on both sides of the strike nearest
// center, inclusive, in ascending order.
func (b *StrikeBook) Window(center float64, each int) []data.StrikeQuote {
	node := b.nearestNode(center)
	if node == nil {
		return nil
	}

	var left []data.StrikeQuote
	it := b.tree.IteratorAt(node)
	for i := 0; i < each && it.Prev(); i++ {
		left = append(left, it.Value().(data.StrikeQuote))
	}

	out := make([]data.StrikeQuote, 0, 2*each+1)
	for i := len(left) - 1; i >= 0; i-- {
		out = append(out, left[i])
	}
	out = append(out, node.Value.(data.StrikeQuote))

	it = b.tree.IteratorAt(node)
	for i := 0; i < each && it.Next(); i++ {
		out = append(out, it.Value().(data.StrikeQuote))
	}
	return out
}
