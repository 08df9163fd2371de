package leaderboard

import (
	"math"
	"time"
)

// Weights and decay of the popularity score.
const (
	followWeight = 0.6
	clickWeight  = 0.4
	// e^(-age/36) halves roughly every 25 hours
	decayHours = 36.0
)

// Score is the time-decayed popularity of an item:
//
//	(ln(1+votes) + 0.6*ln(1+follows) + 0.4*ln(1+clicks)) * e^(-ageHours/36)
//
// Callers pass ageHours >= 0; see AgeHours.
func Score(votes, follows, clicks uint64, ageHours float64) float64 {
	base := math.Log1p(float64(votes)) +
		followWeight*math.Log1p(float64(follows)) +
		clickWeight*math.Log1p(float64(clicks))
	return base * math.Exp(-ageHours/decayHours)
}

// AgeHours returns the age of created at now in hours, never negative.
func AgeHours(created, now time.Time) float64 {
	h := now.Sub(created).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// ScoreAt scores a subject as of now.
func (s Subject) ScoreAt(now time.Time) float64 {
	return Score(s.Votes, s.Follows, s.Clicks, AgeHours(s.CreatedAt, now))
}
