package storage

import (
	"math"

	"github.com/msredis/msredis/skiplist"
)

// ZMember is a sorted set member with its score
type ZMember struct {
	Member []byte
	Score  float64
}

// ZAddOptions controls ZADD behaviour
type ZAddOptions struct {
	// NX only adds new members
	NX bool
	// XX only updates existing members
	XX bool
	// GT only updates when the new score is greater
	GT bool
	// LT only updates when the new score is lower
	LT bool
	// CH counts changed members as well as added ones
	CH bool
	// Incr adds the given score to the current one
	Incr bool
}

// zaddOutcome reports what ZSet.Add did
type zaddOutcome int

const (
	// zaddNop leaves an existing member with the same score
	zaddNop zaddOutcome = iota
	// zaddSkipped means NX, XX, GT or LT ruled the change out
	zaddSkipped
	zaddAdded
	zaddUpdated
)

// ZSet is a sorted set: a member to score map paired with an ordered index
// over (score, member).
type ZSet struct {
	dict        map[string]float64
	index       *skiplist.SkipList
	memberBytes int
}

// NewZSet creates an empty sorted set
func NewZSet(opts ...skiplist.Option) *ZSet {
	return &ZSet{
		dict:  make(map[string]float64),
		index: skiplist.New(opts...),
	}
}

// Len returns the number of members
func (z *ZSet) Len() int {
	return len(z.dict)
}

// Score returns the score of member
func (z *ZSet) Score(member []byte) (float64, bool) {
	s, ok := z.dict[string(member)]
	return s, ok
}

// Add inserts or updates member. It returns the member's resulting score
// and what changed.
func (z *ZSet) Add(score float64, member []byte, opts ZAddOptions) (float64, zaddOutcome, error) {
	if math.IsNaN(score) {
		return 0, zaddNop, ErrScoreNaN
	}

	cur, exists := z.dict[string(member)]
	if !exists {
		if opts.XX {
			return 0, zaddSkipped, nil
		}
		z.dict[string(member)] = score
		z.index.Insert(score, member)
		z.memberBytes += len(member)
		return score, zaddAdded, nil
	}

	if opts.NX {
		return cur, zaddSkipped, nil
	}
	if opts.Incr {
		score += cur
		if math.IsNaN(score) {
			return 0, zaddNop, ErrScoreNaN
		}
	}
	if (opts.GT && score <= cur) || (opts.LT && score >= cur) {
		return cur, zaddSkipped, nil
	}
	if score == cur {
		return cur, zaddNop, nil
	}

	z.index.Delete(cur, member)
	z.index.Insert(score, member)
	z.dict[string(member)] = score
	return score, zaddUpdated, nil
}

// Remove deletes member and reports whether it was present
func (z *ZSet) Remove(member []byte) bool {
	score, ok := z.dict[string(member)]
	if !ok {
		return false
	}
	z.index.Delete(score, member)
	delete(z.dict, string(member))
	z.memberBytes -= len(member)
	return true
}

// Rank returns the 0-based position of member, counted from the highest
// score when reverse is set.
func (z *ZSet) Rank(member []byte, reverse bool) (int64, bool) {
	score, ok := z.dict[string(member)]
	if !ok {
		return 0, false
	}
	r, ok := z.index.Rank(score, member)
	if !ok {
		return 0, false
	}
	if reverse {
		return int64(z.index.Len() - r), true
	}
	return int64(r - 1), true
}

// normalizeIndexes converts Redis style 0-based, possibly negative, start
// and stop indexes into 1-based ranks. ok is false for an empty selection.
func (z *ZSet) normalizeIndexes(start, stop int64) (int, int, bool) {
	n := int64(z.index.Len())
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	if stop >= n {
		stop = n - 1
	}
	return int(start) + 1, int(stop) + 1, true
}

// Range returns the members between the 0-based indexes start and stop,
// inclusive. Negative indexes count from the end.
func (z *ZSet) Range(start, stop int64, reverse bool) []ZMember {
	from, to, ok := z.normalizeIndexes(start, stop)
	if !ok {
		return nil
	}
	seq := z.index.RangeByRank(from, to)
	if reverse {
		seq = z.index.RevRangeByRank(from, to)
	}
	out := make([]ZMember, 0, to-from+1)
	for e := range seq {
		out = append(out, toMember(e))
	}
	return out
}

// RangeByScore returns members whose score lies in r, skipping offset
// matches and returning at most count when count is non-negative.
func (z *ZSet) RangeByScore(r skiplist.ScoreRange, reverse bool, offset, count int64) []ZMember {
	seq := z.index.RangeByScore(r)
	if reverse {
		seq = z.index.RevRangeByScore(r)
	}
	var out []ZMember
	for e := range seq {
		if offset > 0 {
			offset--
			continue
		}
		if count >= 0 && int64(len(out)) >= count {
			break
		}
		out = append(out, toMember(e))
	}
	return out
}

// Count returns the number of members whose score lies in r
func (z *ZSet) Count(r skiplist.ScoreRange) int64 {
	return int64(z.index.CountInRange(r))
}

// RemoveRangeByRank removes members between the 0-based indexes start and
// stop, inclusive.
func (z *ZSet) RemoveRangeByRank(start, stop int64) int64 {
	from, to, ok := z.normalizeIndexes(start, stop)
	if !ok {
		return 0
	}
	return int64(z.index.DeleteRangeByRank(from, to, z.forget))
}

// RemoveRangeByScore removes members whose score lies in r
func (z *ZSet) RemoveRangeByScore(r skiplist.ScoreRange) int64 {
	return int64(z.index.DeleteRangeByScore(r, z.forget))
}

func (z *ZSet) forget(e skiplist.Element) {
	delete(z.dict, string(e.Member))
	z.memberBytes -= len(e.Member)
}

func toMember(e skiplist.Element) ZMember {
	return ZMember{Member: e.Member, Score: e.Score}
}
