package skiplist

import (
	"bytes"
	"fmt"
	randv2 "math/rand/v2"
	"testing"
)

// checkInvariants walks every level and verifies ordering, span sums,
// back references and the length counter.
func checkInvariants(t *testing.T, sl *SkipList) {
	t.Helper()

	var order []int
	for x := sl.nodes[header].levels[0].forward; x != none; x = sl.nodes[x].levels[0].forward {
		order = append(order, x)
	}
	if len(order) != sl.length {
		t.Fatalf("level 0 holds %d nodes, length = %d", len(order), sl.length)
	}

	rankOf := make(map[int]int, len(order))
	for i, x := range order {
		rankOf[x] = i + 1
		if i > 0 {
			p := order[i-1]
			if !sl.less(p, sl.nodes[x].score, sl.nodes[x].member) {
				t.Fatalf("nodes out of order at rank %d", i+1)
			}
			if sl.nodes[x].backward != p {
				t.Fatalf("backward of rank %d = %d, want %d", i+1, sl.nodes[x].backward, p)
			}
		} else if sl.nodes[x].backward != none {
			t.Fatalf("first node has backward %d", sl.nodes[x].backward)
		}
	}
	wantTail := none
	if len(order) > 0 {
		wantTail = order[len(order)-1]
	}
	if sl.tail != wantTail {
		t.Fatalf("tail = %d, want %d", sl.tail, wantTail)
	}

	top := 0
	for i := 0; i < sl.level; i++ {
		x, traversed := header, 0
		for {
			l := sl.nodes[x].levels[i]
			if l.forward == none {
				break
			}
			top = max(top, i+1)
			traversed += l.span
			if traversed != rankOf[l.forward] {
				t.Fatalf("level %d: span sum %d reaches node with rank %d", i, traversed, rankOf[l.forward])
			}
			x = l.forward
		}
	}
	if sl.length > 0 && top != sl.level {
		t.Fatalf("level = %d, highest populated level = %d", sl.level, top)
	}
	for i := sl.level; i < MaxLevel; i++ {
		if sl.nodes[header].levels[i].forward != none {
			t.Fatalf("header level %d above list level has a forward link", i)
		}
	}
}

func testSource() randv2.Source {
	return randv2.NewPCG(1, 2)
}

func TestInvariantsUnderRandomOps(t *testing.T) {
	sl := New(WithSource(testSource()))
	rng := randv2.New(randv2.NewPCG(3, 4))
	present := make(map[string]float64)

	for i := 0; i < 3000; i++ {
		member := fmt.Sprintf("m%03d", rng.IntN(400))
		if score, ok := present[member]; ok {
			if !sl.Delete(score, []byte(member)) {
				t.Fatalf("Delete(%v, %s) = false for present member", score, member)
			}
			delete(present, member)
		} else {
			score := float64(rng.IntN(50))
			sl.Insert(score, []byte(member))
			present[member] = score
		}
		if i%97 == 0 {
			checkInvariants(t, sl)
		}
	}
	checkInvariants(t, sl)

	for member, score := range present {
		if !sl.Delete(score, []byte(member)) {
			t.Fatalf("Delete(%v, %s) = false", score, member)
		}
	}
	checkInvariants(t, sl)

	if sl.Len() != 0 {
		t.Fatalf("Len() = %d after deleting everything", sl.Len())
	}
	for i := 0; i < MaxLevel; i++ {
		if sl.nodes[header].levels[i].forward != none {
			t.Fatalf("header level %d still has a forward link", i)
		}
	}
	if sl.level != 1 {
		t.Errorf("level = %d on empty list, want 1", sl.level)
	}
}

func TestArenaReusesSlots(t *testing.T) {
	sl := New(WithSource(testSource()))
	for i := 0; i < 10; i++ {
		sl.Insert(float64(i), []byte{byte('a' + i)})
	}
	size := len(sl.nodes)
	for i := 0; i < 10; i++ {
		sl.Delete(float64(i), []byte{byte('a' + i)})
	}
	for i := 0; i < 10; i++ {
		sl.Insert(float64(i), []byte{byte('k' + i)})
	}
	if len(sl.nodes) != size {
		t.Errorf("arena grew from %d to %d despite free slots", size, len(sl.nodes))
	}
	checkInvariants(t, sl)
}

func TestDeleteRangesKeepInvariants(t *testing.T) {
	sl := New(WithSource(testSource()))
	for i := 0; i < 200; i++ {
		sl.Insert(float64(i%20), []byte(fmt.Sprintf("%03d", i)))
	}

	var removed [][]byte
	n := sl.DeleteRangeByScore(ScoreRange{Min: 5, Max: 7}, func(e Element) {
		removed = append(removed, bytes.Clone(e.Member))
	})
	if n != 30 || len(removed) != 30 {
		t.Fatalf("DeleteRangeByScore removed %d (callback %d), want 30", n, len(removed))
	}
	checkInvariants(t, sl)

	if n := sl.DeleteRangeByRank(1, 10, nil); n != 10 {
		t.Fatalf("DeleteRangeByRank(1, 10) = %d, want 10", n)
	}
	checkInvariants(t, sl)

	if n := sl.DeleteRangeByRank(sl.Len()-4, sl.Len()+100, nil); n != 5 {
		t.Fatalf("DeleteRangeByRank tail = %d, want 5", n)
	}
	checkInvariants(t, sl)
	if sl.Len() != 155 {
		t.Errorf("Len() = %d, want 155", sl.Len())
	}
}

func TestRandomLevelBounds(t *testing.T) {
	sl := New(WithSource(testSource()))
	counts := make(map[int]int)
	for i := 0; i < 100000; i++ {
		lvl := sl.randomLevel()
		if lvl < 1 || lvl > MaxLevel {
			t.Fatalf("randomLevel() = %d", lvl)
		}
		counts[lvl]++
	}
	// Roughly three quarters of samples stay at level 1.
	if frac := float64(counts[1]) / 100000; frac < 0.72 || frac > 0.78 {
		t.Errorf("level 1 fraction = %.3f, want about 0.75", frac)
	}
}
