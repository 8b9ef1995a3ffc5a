// Package config loads runtime settings from flags, environment variables,
// and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	DatabaseURL        string
	Listen             string
	RPCURL             string
	AuthToken          string
	DedupeBlocks       bool
	QueryTimeout       time.Duration
	CallTimeout        time.Duration
	FetchTimeout       time.Duration
	ValidateBatchSize  int
	ValidateBatchPause time.Duration
	ValidateLimit      int
	ReserveLimit       int
	MaxRetries         int
	RetryBackoff       time.Duration
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINSTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("dedupe-blocks", true)
	v.SetDefault("query-timeout", 30*time.Second)
	v.SetDefault("call-timeout", 10*time.Second)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("validate-batch-size", 5)
	v.SetDefault("validate-batch-pause", time.Duration(0))
	v.SetDefault("validate-limit", 50)
	v.SetDefault("reserve-limit", 20)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		DatabaseURL:        v.GetString("database-url"),
		Listen:             v.GetString("listen"),
		RPCURL:             v.GetString("rpc-url"),
		AuthToken:          v.GetString("auth-token"),
		DedupeBlocks:       v.GetBool("dedupe-blocks"),
		QueryTimeout:       v.GetDuration("query-timeout"),
		CallTimeout:        v.GetDuration("call-timeout"),
		FetchTimeout:       v.GetDuration("fetch-timeout"),
		ValidateBatchSize:  v.GetInt("validate-batch-size"),
		ValidateBatchPause: v.GetDuration("validate-batch-pause"),
		ValidateLimit:      v.GetInt("validate-limit"),
		ReserveLimit:       v.GetInt("reserve-limit"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}
