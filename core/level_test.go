package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLevelProgressTable(t *testing.T) {
	tests := []struct {
		xp      int64
		level   int64
		current int64
		toNext  int64
	}{
		{0, 1, 0, 100},
		{99, 1, 99, 100},
		{100, 2, 0, 200},
		{299, 2, 199, 200},
		{300, 3, 0, 300},
		{599, 3, 299, 300},
		{600, 4, 0, 400},
		{-50, 1, 0, 100},
	}
	for _, tt := range tests {
		p := ComputeLevelProgress(tt.xp)
		assert.Equal(t, tt.level, p.Level, "level for %d", tt.xp)
		assert.Equal(t, tt.current, p.CurrentXP, "current for %d", tt.xp)
		assert.Equal(t, tt.toNext, p.XPToNextLevel, "to next for %d", tt.xp)
		assert.Equal(t, p.XPToNextLevel-p.CurrentXP, p.XPRemaining)
		assert.Equal(t, p.TotalXPForCurrentLevel+p.XPToNextLevel, p.TotalXPForNextLevel)
	}
}

func TestComputeLevelProgressPercent(t *testing.T) {
	p := ComputeLevelProgress(200)
	require.Equal(t, int64(2), p.Level)
	assert.Equal(t, int64(50), p.ProgressPercent)
	assert.Equal(t, int64(100), p.TotalXPForCurrentLevel)
	assert.Equal(t, int64(300), p.TotalXPForNextLevel)
}

func TestClosedFormMatchesIterative(t *testing.T) {
	for xp := int64(0); xp <= 2_000_000; xp++ {
		lvl, cur := levelIterative(xp)
		p := ComputeLevelProgress(xp)
		if p.Level != lvl || p.CurrentXP != cur {
			t.Fatalf("xp=%d closed form (%d,%d) iterative (%d,%d)", xp, p.Level, p.CurrentXP, lvl, cur)
		}
	}
}

func TestClosedFormLargeThresholds(t *testing.T) {
	for lvl := int64(1); lvl <= 100_000; lvl++ {
		start := LevelThreshold(lvl)
		require.Equal(t, lvl, LevelForXP(start), "start of level %d", lvl)
		if start > 0 {
			require.Equal(t, lvl-1, LevelForXP(start-1), "end of level %d", lvl-1)
		}
	}
}

func TestLevelIsPathIndependent(t *testing.T) {
	var total int64
	for i := 0; i < 1000; i++ {
		total += 7
	}
	assert.Equal(t, ComputeLevelProgress(7000), ComputeLevelProgress(total))
}

func TestComputeLevelProgressExtremes(t *testing.T) {
	for _, xp := range []int64{
		4_000_000_000_000_000_000,
		5_000_000_000_000_000_000,
		LevelThreshold(MaxLevel) - 1,
		LevelThreshold(MaxLevel),
		math.MaxInt64,
	} {
		p := ComputeLevelProgress(xp)
		require.GreaterOrEqual(t, p.Level, int64(1), "xp=%d", xp)
		require.LessOrEqual(t, p.Level, MaxLevel, "xp=%d", xp)
		assert.Equal(t, LevelThreshold(p.Level), p.TotalXPForCurrentLevel, "xp=%d", xp)
		assert.Equal(t, xp-p.TotalXPForCurrentLevel, p.CurrentXP, "xp=%d", xp)
		assert.GreaterOrEqual(t, p.CurrentXP, int64(0), "xp=%d", xp)
		assert.Greater(t, p.XPRemaining, int64(0), "xp=%d", xp)
		assert.GreaterOrEqual(t, p.TotalXPForNextLevel, p.TotalXPForCurrentLevel, "xp=%d", xp)
		assert.True(t, p.ProgressPercent >= 0 && p.ProgressPercent < 100, "xp=%d", xp)
	}

	top := ComputeLevelProgress(math.MaxInt64)
	assert.Equal(t, MaxLevel, top.Level)
	assert.Equal(t, int64(math.MaxInt64), top.TotalXPForNextLevel)
	assert.Equal(t, MaxLevel-1, LevelForXP(LevelThreshold(MaxLevel)-1))
}

func TestLevelThresholdSaturates(t *testing.T) {
	assert.Equal(t, int64(9_223_372_032_559_808_500), LevelThreshold(MaxLevel))
	assert.Equal(t, int64(math.MaxInt64), LevelThreshold(MaxLevel+1))
	assert.Equal(t, int64(math.MaxInt64), LevelThreshold(math.MaxInt64))

	prev := LevelThreshold(MaxLevel - 1000)
	for lvl := MaxLevel - 999; lvl <= MaxLevel; lvl++ {
		cur := LevelThreshold(lvl)
		require.Greater(t, cur, prev, "threshold must grow at level %d", lvl)
		require.Equal(t, lvl, LevelForXP(cur))
		prev = cur
	}
}
