package leaderboard

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreZeroCounters(t *testing.T) {
	for _, age := range []float64{0, 1, 24, 1000} {
		assert.Equal(t, 0.0, Score(0, 0, 0, age))
	}
}

func TestScoreFormula(t *testing.T) {
	got := Score(10, 5, 20, 12)
	want := (math.Log(11) + 0.6*math.Log(6) + 0.4*math.Log(21)) * math.Exp(-12.0/36)
	assert.InDelta(t, want, got, 1e-12)
}

func TestScoreDecaysWithAge(t *testing.T) {
	for v := uint64(0); v < 50; v += 7 {
		prev := math.Inf(1)
		for age := 0.0; age <= 500; age += 3.5 {
			s := Score(v, v/2, v*3, age)
			require.LessOrEqual(t, s, prev, "v=%d age=%v", v, age)
			prev = s
		}
	}
}

func TestScoreMonotonicInCounters(t *testing.T) {
	const age = 10.0
	for base := uint64(0); base < 200; base += 13 {
		assert.LessOrEqual(t, Score(base, 3, 3, age), Score(base+1, 3, 3, age))
		assert.LessOrEqual(t, Score(3, base, 3, age), Score(3, base+1, 3, age))
		assert.LessOrEqual(t, Score(3, 3, base, age), Score(3, 3, base+1, age))
	}
}

func TestScoreHalfLife(t *testing.T) {
	ratio := Score(100, 0, 0, 25) / Score(100, 0, 0, 0)
	assert.InDelta(t, 0.5, ratio, 0.01)
}

func TestAgeHoursClampsFuture(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.0, AgeHours(now.Add(time.Hour), now))
	assert.InDelta(t, 2.0, AgeHours(now.Add(-2*time.Hour), now), 1e-9)
}
