package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                  string        `mapstructure:"ENV"`
	Port                 string        `mapstructure:"PORT"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	AdminKey             string        `mapstructure:"ADMIN_KEY"`
	AIURL                string        `mapstructure:"AI_URL"`
	AIBreakerMaxFailures uint32        `mapstructure:"AI_BREAKER_MAX_FAILURES"`
	AIBreakerTimeout     time.Duration `mapstructure:"AI_BREAKER_TIMEOUT"`
	CORSAllowed          string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB      int64         `mapstructure:"MAX_UPLOAD_MB"`
	AgentsFile           string        `mapstructure:"AGENTS_FILE"`
	WorkingHoursMode     string        `mapstructure:"WORKING_HOURS_MODE"`
	WorkingHoursStart    int           `mapstructure:"WORKING_HOURS_START"`
	WorkingHoursEnd      int           `mapstructure:"WORKING_HOURS_END"`
	ProcessCron          string        `mapstructure:"PROCESS_CRON"`
	RateLimitPerMin      int           `mapstructure:"RATE_LIMIT_PER_MIN"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("AI_URL", "")
	v.SetDefault("AI_BREAKER_MAX_FAILURES", 5)
	v.SetDefault("AI_BREAKER_TIMEOUT", "30s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("AGENTS_FILE", "")
	v.SetDefault("WORKING_HOURS_MODE", "fixed")
	v.SetDefault("WORKING_HOURS_START", 9)
	v.SetDefault("WORKING_HOURS_END", 17)
	v.SetDefault("PROCESS_CRON", "")
	v.SetDefault("RATE_LIMIT_PER_MIN", 600)
	v.SetDefault("RATE_LIMIT_BURST", 50)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
