package skiplist

import (
	"errors"
	"iter"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned by ParseScoreRange for bounds that are not
// valid floats.
var ErrInvalidRange = errors.New("min or max is not a float")

// ScoreRange is a score interval; each bound is inclusive unless the
// matching Exclusive flag is set.
type ScoreRange struct {
	Min, Max                   float64
	MinExclusive, MaxExclusive bool
}

// ParseScoreRange parses Redis style bounds such as "1", "(1", "-inf" and
// "+inf".
func ParseScoreRange(min, max string) (ScoreRange, error) {
	var r ScoreRange
	var err error
	if r.Min, r.MinExclusive, err = parseBound(min); err != nil {
		return ScoreRange{}, err
	}
	if r.Max, r.MaxExclusive, err = parseBound(max); err != nil {
		return ScoreRange{}, err
	}
	return r, nil
}

func parseBound(s string) (float64, bool, error) {
	exclusive := strings.HasPrefix(s, "(")
	if exclusive {
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false, ErrInvalidRange
	}
	return v, exclusive, nil
}

func (r ScoreRange) aboveMin(v float64) bool {
	if r.MinExclusive {
		return v > r.Min
	}
	return v >= r.Min
}

func (r ScoreRange) belowMax(v float64) bool {
	if r.MaxExclusive {
		return v < r.Max
	}
	return v <= r.Max
}

// Contains reports whether v lies within the range.
func (r ScoreRange) Contains(v float64) bool {
	return r.aboveMin(v) && r.belowMax(v)
}

// Empty reports whether no score can satisfy the range.
func (r ScoreRange) Empty() bool {
	return r.Min > r.Max || (r.Min == r.Max && (r.MinExclusive || r.MaxExclusive))
}

// overlaps reports whether any element of the list may fall in r.
func (sl *SkipList) overlaps(r ScoreRange) bool {
	if r.Empty() {
		return false
	}
	if sl.tail == none || !r.aboveMin(sl.nodes[sl.tail].score) {
		return false
	}
	first := sl.nodes[header].levels[0].forward
	return first != none && r.belowMax(sl.nodes[first].score)
}

// firstInRange returns the lowest node in r and its rank.
func (sl *SkipList) firstInRange(r ScoreRange) (int, int) {
	if !sl.overlaps(r) {
		return none, 0
	}
	x, rank := header, 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			l := sl.nodes[x].levels[i]
			if l.forward == none || r.aboveMin(sl.nodes[l.forward].score) {
				break
			}
			rank += l.span
			x = l.forward
		}
	}
	x = sl.nodes[x].levels[0].forward
	if x == none || !r.belowMax(sl.nodes[x].score) {
		return none, 0
	}
	return x, rank + 1
}

// lastInRange returns the highest node in r and its rank.
func (sl *SkipList) lastInRange(r ScoreRange) (int, int) {
	if !sl.overlaps(r) {
		return none, 0
	}
	x, rank := header, 0
	for i := sl.level - 1; i >= 0; i-- {
		for {
			l := sl.nodes[x].levels[i]
			if l.forward == none || !r.belowMax(sl.nodes[l.forward].score) {
				break
			}
			rank += l.span
			x = l.forward
		}
	}
	if x == header || !r.aboveMin(sl.nodes[x].score) {
		return none, 0
	}
	return x, rank
}

// RangeByScore iterates in ascending order over the elements whose score
// lies in r.
func (sl *SkipList) RangeByScore(r ScoreRange) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		x, _ := sl.firstInRange(r)
		for x != none && r.belowMax(sl.nodes[x].score) {
			if !yield(sl.element(x)) {
				return
			}
			x = sl.nodes[x].levels[0].forward
		}
	}
}

// RevRangeByScore iterates in descending order over the elements whose
// score lies in r.
func (sl *SkipList) RevRangeByScore(r ScoreRange) iter.Seq[Element] {
	return func(yield func(Element) bool) {
		x, _ := sl.lastInRange(r)
		for x != none && r.aboveMin(sl.nodes[x].score) {
			if !yield(sl.element(x)) {
				return
			}
			x = sl.nodes[x].backward
		}
	}
}

// CountInRange returns the number of elements whose score lies in r.
func (sl *SkipList) CountInRange(r ScoreRange) int {
	_, first := sl.firstInRange(r)
	if first == 0 {
		return 0
	}
	_, last := sl.lastInRange(r)
	return last - first + 1
}

// DeleteRangeByScore removes every element whose score lies in r and calls
// fn, if non-nil, with each removed element. It returns the number removed.
func (sl *SkipList) DeleteRangeByScore(r ScoreRange, fn func(Element)) int {
	if r.Empty() {
		return 0
	}

	var update [MaxLevel]int
	x := header
	for i := sl.level - 1; i >= 0; i-- {
		for {
			fwd := sl.nodes[x].levels[i].forward
			if fwd == none || r.aboveMin(sl.nodes[fwd].score) {
				break
			}
			x = fwd
		}
		update[i] = x
	}

	removed := 0
	x = sl.nodes[x].levels[0].forward
	for x != none && r.belowMax(sl.nodes[x].score) {
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
