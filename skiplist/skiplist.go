// Package skiplist implements the ordered index behind sorted sets: a
// probabilistic skip list of (score, member) pairs with per-level spans for
// rank queries and back references for reverse traversal.
//
// Nodes are stored in an arena and linked by index, so the structure holds
// no pointer cycles. A SkipList is not safe for concurrent use; the owner
// must serialise access.
package skiplist

import (
	"bytes"
	"iter"
	randv2 "math/rand/v2"
	"time"
)

const (
	// MaxLevel is the maximum number of levels a node may occupy.
	MaxLevel = 64

	// Probability is the chance that a node is promoted one level higher.
	Probability = 0.25

	// header is the arena slot of the header node. Because the header is
	// never the target of a link, slot 0 also means "no node".
	header = 0
	none   = 0
)

// Element is a (score, member) pair stored in the index. Member is a copy;
// changing it does not affect the index.
type Element struct {
	Score  float64
	Member []byte
}

type level struct {
	forward int
	span    int
}

type node struct {
	member   []byte
	score    float64
	backward int
	levels   []level
}

// SkipList is an ordered index of (score, member) pairs, sorted by score
// and then by member bytes.
type SkipList struct {
	nodes  []node
	free   []int
	tail   int
	length int
	level  int
	rng    *randv2.Rand
}

// Option configures a SkipList.
type Option func(*SkipList)

// WithSource sets the random source used to sample node levels.
func WithSource(src randv2.Source) Option {
	return func(sl *SkipList) {
		sl.rng = randv2.New(src)
	}
}

// New creates an empty skip list.
func New(opts ...Option) *SkipList {
	sl := &SkipList{
		nodes: make([]node, 1, 16),
		level: 1,
	}
	sl.nodes[header].levels = make([]level, MaxLevel)
	for _, opt := range opts {
		opt(sl)
	}
	if sl.rng == nil {
		seed := uint64(time.Now().UnixNano())
		sl.rng = randv2.New(randv2.NewPCG(seed, seed>>32|1))
	}
	return sl
}

// Len returns the number of elements.
func (sl *SkipList) Len() int {
	return sl.length
}

// Level returns the highest level currently in use.
func (sl *SkipList) Level() int {
	return sl.level
}

func (sl *SkipList) randomLevel() int {
	lvl := 1
	for lvl < MaxLevel && sl.rng.Float64() < Probability {
		lvl++
	}
	return lvl
}

// less reports whether node x sorts strictly before (score, member).
func (sl *SkipList) less(x int, score float64, member []byte) bool {
	n := &sl.nodes[x]
	return n.score < score || (n.score == score && bytes.Compare(n.member, member) < 0)
}

func (sl *SkipList) matches(x int, score float64, member []byte) bool {
	n := &sl.nodes[x]
	return x != none && n.score == score && bytes.Equal(n.member, member)
}

func (sl *SkipList) element(x int) Element {
	n := &sl.nodes[x]
	return Element{Score: n.score, Member: bytes.Clone(n.member)}
}

func (sl *SkipList) alloc(score float64, member []byte, lvl int) int {
	m := make([]byte, len(member))
	copy(m, member)
	n := node{member: m, score: score, levels: make([]level, lvl)}

	if k := len(sl.free); k > 0 {
		x := sl.free[k-1]
		sl.free = sl.free[:k-1]
		sl.nodes[x] = n
		return x
	}
	sl.nodes = append(sl.nodes, n)
	return len(sl.nodes) - 1
}

func (sl *SkipList) release(x int) {
	sl.nodes[x] = node{}
	sl.free = append(sl.free, x)
}

// Insert adds (score, member) and returns the stored element. The pair must
// not already be present.
func (sl *SkipList) Insert(score float64, member []byte) Element {
	var update [MaxLevel]int
	var rank [MaxLevel]int

	x := header
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for {
			fwd := sl.nodes[x].levels[i].forward
			if fwd == none || !sl.less(fwd, score, member) {
				break
			}
			rank[i] += sl.nodes[x].levels[i].span
			x = fwd
		}
		update[i] = x
	}

	lvl := sl.randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = header
			sl.nodes[header].levels[i].span = sl.length
		}
		sl.level = lvl
	}

	x = sl.alloc(score, member, lvl)
	for i := 0; i < lvl; i++ {
		prev := &sl.nodes[update[i]].levels[i]
		cur := &sl.nodes[x].levels[i]
		cur.forward = prev.forward
		prev.forward = x
		cur.span = prev.span - (rank[0] - rank[i])
		prev.span = rank[0] - rank[i] + 1
	}
	for i := lvl; i < sl.level; i++ {
		sl.nodes[update[i]].levels[i].span++
	}

	sl.nodes[x].backward = update[0]
	if fwd := sl.nodes[x].levels[0].forward; fwd != none {
		sl.nodes[fwd].backward = x
	} else {
		sl.tail = x
	}
	sl.length++
	return sl.element(x)
}

// findUpdate fills update with the rightmost node before (score, member) on
// every level in use.
func (sl *SkipList) findUpdate(score float64, member []byte, update *[MaxLevel]int) {
	x := header
	for i := sl.level - 1; i >= 0; i-- {
		for {
			fwd := sl.nodes[x].levels[i].forward
			if fwd == none || !sl.less(fwd, score, member) {
				break
			}
			x = fwd
		}
		update[i] = x
	}
}

// Delete removes (score, member) and reports whether it was present.
func (sl *SkipList) Delete(score float64, member []byte) bool {
	var update [MaxLevel]int
	sl.findUpdate(score, member, &update)

	x := sl.nodes[update[0]].levels[0].forward
	if !sl.matches(x, score, member) {
		return false
	}
	sl.unlink(x, &update)
	sl.release(x)
	return true
}

func (sl *SkipList) unlink(x int, update *[MaxLevel]int) {
	for i := 0; i < sl.level; i++ {
		prev := &sl.nodes[update[i]].levels[i]
		if prev.forward == x {
			prev.span += sl.nodes[x].levels[i].span - 1
			prev.forward = sl.nodes[x].levels[i].forward
		} else {
			prev.span--
		}
	}

	if fwd := sl.nodes[x].levels[0].forward; fwd != none {
		sl.nodes[fwd].backward = sl.nodes[x].backward
	} else {
		sl.tail = sl.nodes[x].backward
	}
	for sl.level > 1 && sl.nodes[header].levels[sl.level-1].forward == none {
		sl.level--
	}
	sl.length--
}

// Rank returns the 1-based position of (score, member).
func (sl *SkipList) Rank(score float64, member []byte) (int, bool) {
	x, rank := header, 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			fwd := sl.nodes[x].levels[i].forward
			if fwd == none {
				break
			}
			n := &sl.nodes[fwd]
			if n.score > score || (n.score == score && bytes.Compare(n.member, member) > 0) {
				break
			}
			rank += sl.nodes[x].levels[i].span
			x = fwd
		}
		if x != header && sl.matches(x, score, member) {
			return rank, true
		}
	}
	return 0, false
}

func (sl *SkipList) nodeByRank(rank int) int {
	if rank < 1 || rank > sl.length {
		return none
	}
	x, traversed := header, 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			l := sl.nodes[x].levels[i]
			if l.forward == none || traversed+l.span > rank {
				break
			}
			traversed += l.span
			x = l.forward
		}
		if traversed == rank {
			return x
		}
	}
	return none
}

// ByRank returns the element at the 1-based position rank.
func (sl *SkipList) ByRank(rank int) (Element, bool) {
	x := sl.nodeByRank(rank)
	if x == none {
		return Element{}, false
	}
	return sl.element(x), true
}

// First returns the lowest element.
func (sl *SkipList) First() (Element, bool) {
	x := sl.nodes[header].levels[0].forward
	if x == none {
		return Element{}, false
	}
	return sl.element(x), true
}

// Last returns the highest element.
func (sl *SkipList) Last() (Element, bool) {
	if sl.tail == none {
		return Element{}, false
	}
	return sl.element(sl.tail), true
}

// All iterates over every element in ascending order.
func (sl *SkipList) All() iter.Seq[Element] {
	return sl.RangeByRank(1, sl.length)
}

// Backward iterates over every element in descending order.
func (sl *SkipList) Backward() iter.Seq[Element] {
	return sl.RevRangeByRank(1, sl.length)
}

// RangeByRank iterates over the elements with 1-based ranks in
// [start, end], in ascending order. Out-of-range bounds are clamped.
func (sl *SkipList) RangeByRank(start, end int) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		start, end := max(start, 1), min(end, sl.length)
		if start > end {
			return
		}
		x := sl.nodeByRank(start)
		for n := end - start + 1; n > 0 && x != none; n-- {
			if !yield(sl.element(x)) {
				return
			}
			x = sl.nodes[x].levels[0].forward
		}
	}
}

// RevRangeByRank iterates in descending order over reverse ranks in
// [start, end], where reverse rank 1 is the highest element.
func (sl *SkipList) RevRangeByRank(start, end int) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		start, end := max(start, 1), min(end, sl.length)
		if start > end {
			return
		}
		x := sl.nodeByRank(sl.length - start + 1)
		for n := end - start + 1; n > 0 && x != none; n-- {
			if !yield(sl.element(x)) {
				return
			}
			x = sl.nodes[x].backward
		}
	}
}

// DeleteRangeByRank removes the elements with 1-based ranks in [start, end]
// and calls fn, if non-nil, with each removed element. It returns the number
// removed.
func (sl *SkipList) DeleteRangeByRank(start, end int, fn func(Element)) int {
	start, end = max(start, 1), min(end, sl.length)
	if start > end {
		return 0
	}

	var update [MaxLevel]int
	x, traversed := header, 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			l := sl.nodes[x].levels[i]
			if l.forward == none || traversed+l.span >= start {
				break
			}
			traversed += l.span
			x = l.forward
		}
		update[i] = x
	}

	removed := 0
	x = sl.nodes[x].levels[0].forward
	for x != none && traversed+removed+1 <= end {
		next := sl.nodes[x].levels[0].forward
		if fn != nil {
			fn(sl.element(x))
		}
		sl.unlink(x, &update)
		sl.release(x)
		removed++
		x = next
	}
	return removed
}
