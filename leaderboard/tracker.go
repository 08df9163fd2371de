package leaderboard

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Tracker keeps the latest counters per subject and ranks them at read time.
// Scores decay continuously, so nothing is cached between reads.
type Tracker struct {
	mu       sync.Mutex
	subjects map[SubjectID]Subject
	board    *SkipList
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		subjects: map[SubjectID]Subject{},
		board:    NewSkipList(),
		now:      time.Now,
	}
}

// Upsert records the current counters of a subject.
func (t *Tracker) Upsert(s Subject) error {
	s.ID = SubjectID(strings.TrimSpace(string(s.ID)))
	if s.ID == "" {
		return errors.New("subject id is required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now().UTC()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subjects[s.ID] = s
	return nil
}

// Remove drops a subject from the ranking.
func (t *Tracker) Remove(id SubjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subjects, id)
	t.board.Remove(id)
}

// Top re-scores every subject as of now and returns the n best.
func (t *Tracker) Top(n int, now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.subjects {
		t.board.Update(id, s.ScoreAt(now))
	}
	return t.board.TopN(n)
}

// Rank re-scores every subject as of now and returns id's 1-based position.
func (t *Tracker) Rank(id SubjectID, now time.Time) (int, Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subjects[id]; !ok {
		return 0, Entry{}, false
	}
	for sid, s := range t.subjects {
		t.board.Update(sid, s.ScoreAt(now))
	}
	pos, _ := t.board.Rank(id)
	e, _ := t.board.Get(id)
	return pos, e, true
}

// Len returns the number of tracked subjects.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subjects)
}
