package storage

import (
	"github.com/msredis/msredis/skiplist"
)

// viewZSet runs fn with the sorted set at key, or nil when it is missing
func (k *keyspace) viewZSet(key string, fn func(z *ZSet) error) error {
	return k.view(key, func(v *Value) error {
		if v == nil {
			return fn(nil)
		}
		z, err := v.ZSet()
		if err != nil {
			return err
		}
		return fn(z)
	})
}

// updateZSet runs fn with the sorted set at key. A missing set is created
// when create is set; fn receives nil otherwise. Sets left empty are removed.
func (k *keyspace) updateZSet(key string, create bool, fn func(z *ZSet) error) error {
	run := k.update
	if create {
		run = k.write
	}
	return run(key, func(sh *shard, v *Value) error {
		if v == nil {
			if !create {
				return fn(nil)
			}
			v = newZSetValue(NewZSet())
			sh.data[key] = v
		}
		z, err := v.ZSet()
		if err != nil {
			return err
		}
		err = fn(z)
		if z.Len() == 0 {
			delete(sh.data, key)
		}
		return err
	})
}

// ZAdd adds or updates members and returns the number added, or the number
// changed when opts.CH is set
func (k *keyspace) ZAdd(key string, opts ZAddOptions, members ...ZMember) (int64, error) {
	var count int64
	err := k.updateZSet(key, true, func(z *ZSet) error {
		for _, m := range members {
			_, outcome, err := z.Add(m.Score, m.Member, opts)
			if err != nil {
				return err
			}
			if outcome == zaddAdded || (opts.CH && outcome == zaddUpdated) {
				count++
			}
		}
		return nil
	})
	if err == nil && count > 0 {
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
	}
	return count, err
}

// ZIncrBy adds delta to the score of member and returns the new score
func (k *keyspace) ZIncrBy(key string, delta float64, member []byte) (float64, error) {
	score, _, err := k.ZAddIncr(key, ZAddOptions{}, ZMember{Member: member, Score: delta})
	return score, err
}

// ZAddIncr adds m.Score to the score of m.Member under opts. ok is false
// when NX, XX, GT or LT prevented the change.
func (k *keyspace) ZAddIncr(key string, opts ZAddOptions, m ZMember) (float64, bool, error) {
	var score float64
	var outcome zaddOutcome
	opts.Incr = true
	err := k.updateZSet(key, !opts.XX, func(z *ZSet) error {
		if z == nil {
			outcome = zaddSkipped
			return nil
		}
		var err error
		score, outcome, err = z.Add(m.Score, m.Member, opts)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if outcome == zaddAdded || outcome == zaddUpdated {
		k.owner.notify(func(o StorageObserver) { o.OnKeySet(key) })
	}
	return score, outcome != zaddSkipped, nil
}

// ZRem removes members and returns how many existed
func (k *keyspace) ZRem(key string, members ...[]byte) (int64, error) {
	var removed int64
	err := k.updateZSet(key, false, func(z *ZSet) error {
		if z == nil {
			return nil
		}
		for _, m := range members {
			if z.Remove(m) {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// ZScore returns the score of member
func (k *keyspace) ZScore(key string, member []byte) (float64, bool, error) {
	var score float64
	var found bool
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			score, found = z.Score(member)
		}
		return nil
	})
	return score, found, err
}

// ZCard returns the number of members
func (k *keyspace) ZCard(key string) (int64, error) {
	var n int64
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			n = int64(z.Len())
		}
		return nil
	})
	return n, err
}

// ZRank returns the 0-based rank of member
func (k *keyspace) ZRank(key string, member []byte, reverse bool) (int64, bool, error) {
	var rank int64
	var found bool
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			rank, found = z.Rank(member, reverse)
		}
		return nil
	})
	return rank, found, err
}

// ZRange returns members between the 0-based indexes start and stop
func (k *keyspace) ZRange(key string, start, stop int64, reverse bool) ([]ZMember, error) {
	var out []ZMember
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			out = z.Range(start, stop, reverse)
		}
		return nil
	})
	return out, err
}

// ZRangeByScore returns members whose score lies in r
func (k *keyspace) ZRangeByScore(key string, r skiplist.ScoreRange, reverse bool, offset, count int64) ([]ZMember, error) {
	var out []ZMember
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			out = z.RangeByScore(r, reverse, offset, count)
		}
		return nil
	})
	return out, err
}

// ZCount returns the number of members whose score lies in r
func (k *keyspace) ZCount(key string, r skiplist.ScoreRange) (int64, error) {
	var n int64
	err := k.viewZSet(key, func(z *ZSet) error {
		if z != nil {
			n = z.Count(r)
		}
		return nil
	})
	return n, err
}

// ZRemRangeByRank removes members between the 0-based indexes start and stop
func (k *keyspace) ZRemRangeByRank(key string, start, stop int64) (int64, error) {
	var n int64
	err := k.updateZSet(key, false, func(z *ZSet) error {
		if z != nil {
			n = z.RemoveRangeByRank(start, stop)
		}
		return nil
	})
	return n, err
}

// ZRemRangeByScore removes members whose score lies in r
func (k *keyspace) ZRemRangeByScore(key string, r skiplist.ScoreRange) (int64, error) {
	var n int64
	err := k.updateZSet(key, false, func(z *ZSet) error {
		if z != nil {
			n = z.RemoveRangeByScore(r)
		}
		return nil
	})
	return n, err
}
