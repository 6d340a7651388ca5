// Package progression holds the pure XP curve and tier ladder math.
// Nothing here touches storage; callers feed persisted XP values in and get
// levels, thresholds and tiers out.
package progression

import "math"

// XPThreshold returns the cumulative XP required to hold the given level.
// The curve is T(L) = (100L - 50)^2 / 100, which is exactly 100L^2 - 100L + 25
// for L >= 1. Levels at or below zero require no XP.
func XPThreshold(level int) int64 {
	if level <= 0 {
		return 0
	}

	l := int64(level)
	return 100*l*l - 100*l + 25
}

// NextLevelXP returns the cumulative XP required for the level after the
// given one, used to report remaining XP and progress.
func NextLevelXP(level int) int64 {
	if level < 0 {
		level = 0
	}

	return XPThreshold(level + 1)
}

// LevelFromXP returns the largest level L such that XPThreshold(L) <= xp.
// The closed-form inverse floor((sqrt(100*xp)+50)/100) is used as a starting
// point and then adjusted against the exact integer thresholds, so the
// round-trip LevelFromXP(XPThreshold(L)) == L holds for every L >= 0.
func LevelFromXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}

	level := int((math.Sqrt(float64(100*xp)) + 50) / 100)

	// Float error near threshold boundaries can put the estimate off by one
	// in either direction.
	for level > 0 && XPThreshold(level) > xp {
		level--
	}
	for XPThreshold(level+1) <= xp {
		level++
	}

	return level
}

// LevelInfo describes a user's position on the curve.
type LevelInfo struct {
	XP        int64
	Level     int
	NextXP    int64
	Remaining int64
	Progress  float64
}

// InfoForXP derives the full level breakdown for a cumulative XP value.
// Progress is the ratio toward the next level threshold, clamped to [0, 1].
func InfoForXP(xp int64) LevelInfo {
	if xp < 0 {
		xp = 0
	}

	level := LevelFromXP(xp)
	next := NextLevelXP(level)

	info := LevelInfo{
		XP:        xp,
		Level:     level,
		NextXP:    next,
		Remaining: next - xp,
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}

	if next > 0 {
		info.Progress = float64(xp) / float64(next)
		if info.Progress > 1 {
			info.Progress = 1
		}
	}

	return info
}
