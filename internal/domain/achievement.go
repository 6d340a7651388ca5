package domain

import "time"

// AchievementDefinition describes a grantable achievement. CoinReward may be
// negative, which models a penalty applied on grant.
type AchievementDefinition struct {
	ID          int64
	Name        string
	Description string
	XPReward    int
	CoinReward  int64
	Icon        string
}

// AchievementGrant records that a user earned an achievement. The pair
// (UserID, AchievementID) is unique at the storage layer; that constraint is
// what makes the award exactly-once.
type AchievementGrant struct {
	UserID        int64
	AchievementID int64
	EarnedAt      time.Time
}
