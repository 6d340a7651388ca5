// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the YAML file for the current APP_ENV and
// environment variables, applies defaults, validates the result and returns
// it together with the viper instance so callers can watch for changes.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine; the YAML file and real env cover it
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// Watch re-reads the config file on change and calls onChange with the fresh
// value. Invalid updates are reported through onError and the previous
// configuration stays in effect.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("unmarshal config on change: %w", err))
			}
			return
		}

		validate := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.Struct(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("validate config on change: %w", err))
			}
			return
		}

		if onChange != nil {
			onChange(&cfg)
		}
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", "30m")
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.pool_timeout", "4s")
	v.SetDefault("redis.idle_timeout", "5m")
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("activity.message_xp", 5)
	v.SetDefault("activity.message_coins", 2)
	v.SetDefault("activity.voice_xp_per_minute", 2)
	v.SetDefault("activity.voice_coins_interval", 5)
	v.SetDefault("activity.reconcile_interval", "5m")
	v.SetDefault("activity.default_role", "Newcomer")
	v.SetDefault("activity.reputation_threshold", 10)
	v.SetDefault("activity.reputation_cooldown", "24h")

	v.SetDefault("jobs.queues", map[string]int{"default": 5, "low": 1})
	v.SetDefault("jobs.snapshot_cron", "5 0 * * *")
	v.SetDefault("jobs.report_cron", "0 9 * * *")
}
