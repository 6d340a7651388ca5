// Package achievement evaluates milestone predicates after counter mutations
// and awards each achievement exactly once per user.
package achievement

import "github.com/arkade-labs/guildxp/internal/domain"

// Trigger names the counter mutation an achievement reacts to. Predicates
// are only evaluated after their own trigger kind; re-checking is always a
// safe no-op, so this is an optimization, not a correctness gate.
type Trigger string

const (
	TriggerMessage  Trigger = "message"
	TriggerVoice    Trigger = "voice"
	TriggerLevel    Trigger = "level"
	TriggerWarning  Trigger = "warning"
	TriggerPurchase Trigger = "purchase"
)

// Definition couples the stored achievement row with its trigger predicate.
// Threshold is measured in the unit of the trigger: messages, voice minutes,
// level, warning count or purchase count.
type Definition struct {
	domain.AchievementDefinition

	Trigger   Trigger
	Threshold int64
}

// Met reports whether the counter value reached the threshold.
func (d Definition) Met(value int64) bool {
	return value >= d.Threshold
}

// BuiltIn is the stock achievement set. Names are stable identifiers;
// definitions are upserted at startup so reward changes here take effect on
// restart.
func BuiltIn() []Definition {
	return []Definition{
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "chat_100",
				Description: "Send 100 messages",
				XPReward:    50,
				CoinReward:  25,
				Icon:        "💬",
			},
			Trigger:   TriggerMessage,
			Threshold: 100,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "chat_1000",
				Description: "Send 1000 messages",
				XPReward:    250,
				CoinReward:  100,
				Icon:        "📣",
			},
			Trigger:   TriggerMessage,
			Threshold: 1000,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "voice_10h",
				Description: "Spend 10 hours in voice",
				XPReward:    100,
				CoinReward:  50,
				Icon:        "🎙",
			},
			Trigger:   TriggerVoice,
			Threshold: 10 * 60,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "voice_100h",
				Description: "Spend 100 hours in voice",
				XPReward:    500,
				CoinReward:  250,
				Icon:        "🎧",
			},
			Trigger:   TriggerVoice,
			Threshold: 100 * 60,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "level_5",
				Description: "Reach level 5",
				XPReward:    0,
				CoinReward:  50,
				Icon:        "⭐",
			},
			Trigger:   TriggerLevel,
			Threshold: 5,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "level_10",
				Description: "Reach level 10",
				XPReward:    0,
				CoinReward:  150,
				Icon:        "🌟",
			},
			Trigger:   TriggerLevel,
			Threshold: 10,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "level_20",
				Description: "Reach level 20",
				XPReward:    0,
				CoinReward:  400,
				Icon:        "💫",
			},
			Trigger:   TriggerLevel,
			Threshold: 20,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "first_warning",
				Description: "Receive a moderation warning",
				XPReward:    0,
				CoinReward:  -50,
				Icon:        "⚠️",
			},
			Trigger:   TriggerWarning,
			Threshold: 1,
		},
		{
			AchievementDefinition: domain.AchievementDefinition{
				Name:        "first_purchase",
				Description: "Buy a role from the shop",
				XPReward:    25,
				CoinReward:  0,
				Icon:        "🛒",
			},
			Trigger:   TriggerPurchase,
			Threshold: 1,
		},
	}
}
