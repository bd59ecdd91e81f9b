package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Auth struct {
		// RequireSignature enables HS256 verification after structural
		// validation. Off by default, matching the original edge filter.
		RequireSignature bool          `mapstructure:"require_signature"`
		CacheTTL         time.Duration `mapstructure:"cache_ttl"`
		Issuer           string        `mapstructure:"issuer"`
		Audience         string        `mapstructure:"audience"`
		TokenTTL         time.Duration `mapstructure:"token_ttl"`
		Credentials      struct {
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
		} `mapstructure:"credentials"`
	} `mapstructure:"auth"`

	Secrets struct {
		Endpoint  string        `mapstructure:"endpoint"`
		AuthToken string        `mapstructure:"auth_token"`
		StaticKey string        `mapstructure:"static_key"`
		CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"secrets"`

	Observability struct {
		TraceEnabled       bool    `mapstructure:"trace_enabled"`
		TracingEndpointURL string  `mapstructure:"tracing_endpoint_url"`
		TraceSampleRatio   float64 `mapstructure:"trace_sample_ratio"`
		TraceInsecure      bool    `mapstructure:"trace_insecure"`
		LogLevel           string  `mapstructure:"log_level"`
		Format             string  `mapstructure:"log_format"`
	} `mapstructure:"observability"`
}

func MustLoad() *Config {
	v := viper.New()

	logger := slog.Default()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("EDGE_AUTH_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			logger.Info("No environment-specific config (optional)", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("Failed to unmarshal config", slog.Any("error", err))
		os.Exit(1)
	}

	return &cfg
}
