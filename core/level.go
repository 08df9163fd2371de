package core

import (
	"math"
	"math/bits"
)

// XPPerLevelStep is the XP level n costs per n: level n needs n*XPPerLevelStep.
const XPPerLevelStep = 100

// MaxLevel is the highest level whose threshold fits in an int64. Any XP
// total from LevelThreshold(MaxLevel) up to math.MaxInt64 sits in it.
const MaxLevel int64 = 429496730

// LevelProgress describes where a cumulative XP total sits on the level curve.
type LevelProgress struct {
	Level                  int64 `json:"level"`
	CurrentXP              int64 `json:"current_xp"`
	XPToNextLevel          int64 `json:"xp_to_next_level"`
	XPRemaining            int64 `json:"xp_remaining"`
	TotalXPForCurrentLevel int64 `json:"total_xp_for_current_level"`
	TotalXPForNextLevel    int64 `json:"total_xp_for_next_level"`
	ProgressPercent        int64 `json:"progress_percent"`
}

// LevelThreshold returns the cumulative XP at which level starts.
// Level 1 starts at 0, level 2 at 100, level 3 at 300.
func LevelThreshold(level int64) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		return math.MaxInt64
	}
	// (level-1)*level is even, halve before scaling
	hi, lo := bits.Mul64(uint64(level-1), uint64(level))
	lo = lo>>1 | hi<<63
	hi, lo = bits.Mul64(lo, XPPerLevelStep)
	if hi != 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(lo)
}

// LevelForXP returns the level reached with totalXP cumulative XP.
// Negative totals are treated as zero.
func LevelForXP(totalXP int64) int64 {
	if totalXP <= 0 {
		return 1
	}
	// L(L-1) <= 2*xp/100  =>  L = floor((1 + sqrt(1 + 8*xp/100)) / 2)
	lvl := int64((1 + math.Sqrt(1+8*float64(totalXP)/XPPerLevelStep)) / 2)
	if lvl < 1 {
		lvl = 1
	}
	if lvl > MaxLevel {
		lvl = MaxLevel
	}
	// float rounding can be off by one near perfect squares
	for lvl < MaxLevel && LevelThreshold(lvl+1) <= totalXP {
		lvl++
	}
	for lvl > 1 && LevelThreshold(lvl) > totalXP {
		lvl--
	}
	return lvl
}

// ComputeLevelProgress maps cumulative XP to level progress. It is pure and
// depends only on totalXP, so the level never needs to be stored.
func ComputeLevelProgress(totalXP int64) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	lvl := LevelForXP(totalXP)
	start := LevelThreshold(lvl)
	size := lvl * XPPerLevelStep
	current := totalXP - start
	next := start + size
	if next < start {
		next = math.MaxInt64
	}
	return LevelProgress{
		Level:                  lvl,
		CurrentXP:              current,
		XPToNextLevel:          size,
		XPRemaining:            size - current,
		TotalXPForCurrentLevel: start,
		TotalXPForNextLevel:    next,
		ProgressPercent:        current * 100 / size,
	}
}

// levelIterative walks the curve one level at a time.
func levelIterative(totalXP int64) (level, current int64) {
	if totalXP < 0 {
		totalXP = 0
	}
	level, remaining := 1, totalXP
	for remaining >= level*XPPerLevelStep {
		remaining -= level * XPPerLevelStep
		level++
	}
	return level, remaining
}
