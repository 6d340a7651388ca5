// Package domain holds the persistent records of the accrual engine.
package domain

import "time"

// UserStats are the raw activity counters for one user. Counters are
// monotonic and never reset.
type UserStats struct {
	UserID       int64
	Messages     int64
	VoiceMinutes int64
}

// VoiceHours splits the voice counter into whole hours and the remainder.
func (s UserStats) VoiceHours() (hours, minutes int64) {
	return s.VoiceMinutes / 60, s.VoiceMinutes % 60
}

// Progression is the persisted XP record. Level is a cached derivation of XP
// and is recomputed on every XP mutation; readers must treat it as eventually
// consistent with XP.
type Progression struct {
	UserID     int64
	XP         int64
	Level      int
	LastXPTime time.Time
}

// Wallet is the persisted economy record. Balance never goes below zero;
// TotalEarned only ever grows.
type Wallet struct {
	UserID      int64
	Balance     int64
	TotalEarned int64
}

// Warning is one moderation warning issued against a user.
type Warning struct {
	ID          int64
	GuildID     int64
	UserID      int64
	ModeratorID int64
	Reason      string
	IssuedAt    time.Time
}

// ShopRole is a purchasable role listed in a guild's shop.
type ShopRole struct {
	ID          int64
	GuildID     int64
	RoleID      int64
	Price       int64
	Description string
}

// DailyUserStats is one row of the per-user activity history, keyed by day.
type DailyUserStats struct {
	UserID       int64
	GuildID      int64
	Day          time.Time
	VoiceMinutes int64
	Messages     int64
}

// DailyServerStats is one row of the aggregated per-guild history.
type DailyServerStats struct {
	GuildID           int64
	Day               time.Time
	TotalMessages     int64
	TotalVoiceMinutes int64
	ActiveUsers       int64
}

// LeaderboardEntry is one row of a top-N query over any of the counters.
type LeaderboardEntry struct {
	UserID int64
	Value  int64
	Extra  int64
}
