// Package guildconfig stores per-guild feature toggles as typed fields with
// documented defaults, fronted by a short-TTL Redis cache because the engine
// consults them on every activity event.
package guildconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const cacheTTL = 5 * time.Minute

// Config are the per-guild toggles. The zero value is not meaningful; use
// Defaults for a guild without a stored row.
type Config struct {
	GuildID             int64 `json:"guild_id"`
	EconomyEnabled      bool  `json:"economy_enabled"`
	AchievementsEnabled bool  `json:"achievements_enabled"`
	NotifyTierChanges   bool  `json:"notify_tier_changes"`
	DailyReport         bool  `json:"daily_report"`
}

// Defaults returns the toggle set applied to guilds with no stored config.
func Defaults(guildID int64) Config {
	return Config{
		GuildID:             guildID,
		EconomyEnabled:      true,
		AchievementsEnabled: true,
		NotifyTierChanges:   false,
		DailyReport:         true,
	}
}

// Service reads and writes guild configs with read-through caching.
type Service struct {
	db    *sql.DB
	cache *redis.Client
	log   *slog.Logger
}

// NewService creates a Service. cache may be nil, in which case every read
// goes to the database.
func NewService(db *sql.DB, cache *redis.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		db:    db,
		cache: cache,
		log:   log,
	}
}

// Get returns the guild's config, falling back to defaults when no row
// exists or storage is unavailable.
func (s *Service) Get(ctx context.Context, guildID int64) Config {
	if cfg, ok := s.fromCache(ctx, guildID); ok {
		return cfg
	}

	const query = `
		SELECT economy_enabled, achievements_enabled, notify_tier_changes, daily_report
		FROM guild_config
		WHERE guild_id = $1
	`

	cfg := Defaults(guildID)
	err := s.db.QueryRowContext(ctx, query, guildID).Scan(
		&cfg.EconomyEnabled, &cfg.AchievementsEnabled, &cfg.NotifyTierChanges, &cfg.DailyReport,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.log.Warn("guild config read failed, using defaults",
			slog.Int64("guild_id", guildID),
			slog.Any("error", err),
		)
		return cfg
	}

	s.toCache(ctx, cfg)
	return cfg
}

// Set stores the config and invalidates the cached copy.
func (s *Service) Set(ctx context.Context, cfg Config) error {
	const query = `
		INSERT INTO guild_config (guild_id, economy_enabled, achievements_enabled, notify_tier_changes, daily_report)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO UPDATE
			SET economy_enabled = EXCLUDED.economy_enabled,
			    achievements_enabled = EXCLUDED.achievements_enabled,
			    notify_tier_changes = EXCLUDED.notify_tier_changes,
			    daily_report = EXCLUDED.daily_report
	`

	_, err := s.db.ExecContext(ctx, query,
		cfg.GuildID, cfg.EconomyEnabled, cfg.AchievementsEnabled, cfg.NotifyTierChanges, cfg.DailyReport,
	)
	if err != nil {
		return fmt.Errorf("upsert guild config: %w", err)
	}

	s.invalidate(ctx, cfg.GuildID)
	return nil
}

func (s *Service) fromCache(ctx context.Context, guildID int64) (Config, bool) {
	if s.cache == nil {
		return Config{}, false
	}

	data, err := s.cache.Get(ctx, cacheKey(guildID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("guild config cache read failed", slog.Any("error", err))
		}
		return Config{}, false
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, false
	}

	return cfg, true
}

func (s *Service) toCache(ctx context.Context, cfg Config) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, cacheKey(cfg.GuildID), payload, cacheTTL).Err(); err != nil {
		s.log.Warn("guild config cache write failed", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, guildID int64) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, cacheKey(guildID)).Err(); err != nil {
		s.log.Warn("guild config cache invalidation failed", slog.Any("error", err))
	}
}

func cacheKey(guildID int64) string {
	return fmt.Sprintf("guild:config:%d", guildID)
}
