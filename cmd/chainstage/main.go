package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chainstage/internal/config"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "chainstage",
		Short:        "Webhook intake and staging warehouse for EVM chain events",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRefreshCmd())
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newResolveReservesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the command's config and builds its logger.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func addWarehouseFlags(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "Postgres connection URL")
	cmd.Flags().Duration("query-timeout", 30*time.Second, "per-statement warehouse timeout")
	cmd.Flags().Int("max-retries", 5, "maximum startup retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc-url", "", "EVM RPC URL for read-only contract calls")
	cmd.Flags().Duration("call-timeout", 10*time.Second, "per eth_call timeout")
	cmd.Flags().Duration("fetch-timeout", 10*time.Second, "token URI fetch timeout")
	cmd.Flags().Int("validate-batch-size", 5, "entities fetched concurrently per batch")
	cmd.Flags().Duration("validate-batch-pause", 0, "pause between enrichment batches")
}
