package config

import "time"

// Config holds the full runtime configuration of the accrual engine.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Activity ActivityConfig `mapstructure:"activity"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	// File enables lumberjack rotation when set; empty logs to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	User         string        `mapstructure:"user" validate:"required"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name" validate:"required"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
	MigrationsDir string       `mapstructure:"migrations_dir"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// GuildID is the single guild this bot serves.
	GuildID int64 `mapstructure:"guild_id" validate:"required"`
}

// TelegramConfig configures the outbound notification relay. The relay is
// optional; when disabled, tier changes are only logged.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
	ChatID  int64  `mapstructure:"chat_id" validate:"required_if=Enabled true"`
}

// TierConfig is one rung of the reward ladder: reaching Level grants the
// role named Name.
type TierConfig struct {
	Level int    `mapstructure:"level" validate:"gt=0"`
	Name  string `mapstructure:"name" validate:"required"`
	Color int    `mapstructure:"color"`
}

// ActivityConfig holds the accrual rates and the reward ladder. Defaults
// mirror the rates the engine has always used: a message is worth 5 XP and
// 2 coins, a voice minute is worth 2 XP, and every 5 whole voice minutes
// earn a coin.
type ActivityConfig struct {
	MessageXP    int `mapstructure:"message_xp" validate:"gte=0"`
	MessageCoins int `mapstructure:"message_coins" validate:"gte=0"`

	VoiceXPPerMinute   int `mapstructure:"voice_xp_per_minute" validate:"gte=0"`
	VoiceCoinsInterval int `mapstructure:"voice_coins_interval" validate:"gt=0"`

	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"gt=0"`

	DefaultRole string       `mapstructure:"default_role" validate:"required"`
	Ladder      []TierConfig `mapstructure:"ladder" validate:"min=1,dive"`

	ReputationRewardRole string        `mapstructure:"reputation_reward_role"`
	ReputationThreshold  int           `mapstructure:"reputation_threshold"`
	ReputationCooldown   time.Duration `mapstructure:"reputation_cooldown"`
}

type JobsConfig struct {
	Queues       map[string]int `mapstructure:"queues"`
	SnapshotCron string         `mapstructure:"snapshot_cron"`
	ReportCron   string         `mapstructure:"report_cron"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + sslmode
}
