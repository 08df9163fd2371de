package leaderboard

import (
	"math/rand/v2"
	"sync"
)

// A skip list keyed by (score desc, id asc) for O(log n) re-ranking.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

type SkipList struct {
	mu   sync.RWMutex
	head *node
	lvl  int
	byID map[SubjectID]*node
	rng  *rand.Rand
}

// NewSkipList returns an empty list. Tower heights are random; the ranking
// itself is deterministic.
func NewSkipList() *SkipList {
	return newSkipListSeeded(rand.Uint64(), rand.Uint64())
}

func newSkipListSeeded(seed1, seed2 uint64) *SkipList {
	return &SkipList{
		head: &node{},
		lvl:  1,
		byID: map[SubjectID]*node{},
		rng:  rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.ID < b.ID
	}
	return a.Score > b.Score // higher score first
}

// Update inserts or moves id to a new score.
func (s *SkipList) Update(id SubjectID, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[id]; ok {
		// remove old node
		s.removeLocked(id, old.e)
	}
	e := Entry{ID: id, Score: score}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byID[id] = n
}

func (s *SkipList) removeLocked(id SubjectID, e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.ID != id {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byID, id)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(id SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byID[id]; ok {
		s.removeLocked(id, n.e)
	}
}

func (s *SkipList) TopN(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

// Rank returns the 1-based position of id.
func (s *SkipList) Rank(id SubjectID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[id]; !ok {
		return 0, false
	}
	pos := 1
	for cur := s.head.next[0]; cur != nil; cur = cur.next[0] {
		if cur.e.ID == id {
			return pos, true
		}
		pos++
	}
	return 0, false
}

// Len returns the number of ranked entries.
func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *SkipList) Get(id SubjectID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byID[id]; ok {
		return n.e, true
	}
	return Entry{}, false
}

var _ Board = (*SkipList)(nil)
