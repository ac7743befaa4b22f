package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Name string `mapstructure:"name"`
		Port string `mapstructure:"port"`
	} `mapstructure:"app"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Postgres struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		DBName   string `mapstructure:"dbname"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"postgres"`

	Migrations struct {
		Path    string `mapstructure:"path"`
		Enabled bool   `mapstructure:"enabled"`
	} `mapstructure:"migrations"`

	Providers ProvidersConfig `mapstructure:"providers"`

	Resolver struct {
		MaxConcurrency int `mapstructure:"max_concurrency"`
	} `mapstructure:"resolver"`

	Backfill struct {
		Enabled      bool   `mapstructure:"enabled"`
		Schedule     string `mapstructure:"schedule"`
		LookbackDays int    `mapstructure:"lookback_days"`
	} `mapstructure:"backfill"`
}

// ProvidersConfig controls how provider clients are selected and built.
// SandboxMode is the only switch that makes the mock provider constructible.
type ProvidersConfig struct {
	Default     string        `mapstructure:"default"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SandboxMode bool          `mapstructure:"sandbox_mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fxrate-service")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("migrations.path", "migrations")
	v.SetDefault("migrations.enabled", true)
	v.SetDefault("providers.default", "CurrencyBeacon")
	v.SetDefault("providers.timeout", 10*time.Second)
	v.SetDefault("providers.sandbox_mode", false)
	v.SetDefault("resolver.max_concurrency", 8)
	v.SetDefault("backfill.enabled", false)
	v.SetDefault("backfill.schedule", "0 6 * * *")
	v.SetDefault("backfill.lookback_days", 1)
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
