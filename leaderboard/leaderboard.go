package leaderboard

import "time"

// SubjectID identifies a ranked item, typically a listed game.
type SubjectID string

// Subject holds the aggregate counters of one ranked item. The leaderboard
// only reads these; the owning system mutates them.
type Subject struct {
	ID        SubjectID `json:"id"`
	Votes     uint64    `json:"votes"`
	Follows   uint64    `json:"follows"`
	Clicks    uint64    `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry represents a score entry.
type Entry struct {
	ID    SubjectID `json:"id"`
	Score float64   `json:"score"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(id SubjectID, score float64)
	Remove(id SubjectID)
	TopN(n int) []Entry
	Get(id SubjectID) (Entry, bool)
}
