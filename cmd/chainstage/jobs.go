package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainstage/internal/discovery"
	"chainstage/internal/enrich"
	"chainstage/internal/transform"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the warehouse schema",
		RunE:  runMigrate,
	}

	addWarehouseFlags(cmd)
	cmd.Flags().Bool("drop", false, "drop existing tables first")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	drop, _ := cmd.Flags().GetBool("drop")
	if err := wh.Migrate(ctx, drop); err != nil {
		return err
	}

	logger.Info("schema ready", zap.Bool("dropped", drop))
	return nil
}

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <stream>",
		Short: "Run one incremental stream transform",
		Args:  cobra.ExactArgs(1),
		RunE:  runRefresh,
	}

	addWarehouseFlags(cmd)

	return cmd
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	res, err := transform.NewEngine(wh, logger).Refresh(ctx, args[0])
	if printErr := printResult(res); printErr != nil {
		return printErr
	}
	return err
}

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover contract addresses from staged streams",
		RunE:  runDiscover,
	}

	addWarehouseFlags(cmd)

	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	res, err := discovery.NewJob(wh, logger).Run(ctx)
	if printErr := printResult(res); printErr != nil {
		return printErr
	}
	return err
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate pending contracts against external sources",
		RunE:  runValidate,
	}

	addWarehouseFlags(cmd)
	addChainFlags(cmd)
	cmd.Flags().Int("limit", 50, "max contracts to validate")

	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	chainClient, err := connectChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	limit := jobLimit(cmd, cfg.ValidateLimit)
	res, err := enrich.NewValidator(wh, chainClient, enrichOptions(cfg), logger).Run(ctx, limit)
	if printErr := printResult(res); printErr != nil {
		return printErr
	}
	return err
}

func newResolveReservesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve-reserves",
		Short: "Resolve pool reserves for validated contracts",
		RunE:  runResolveReserves,
	}

	addWarehouseFlags(cmd)
	addChainFlags(cmd)
	cmd.Flags().Int("limit", 20, "max pools to resolve")

	return cmd
}

func runResolveReserves(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wh, err := connectWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	chainClient, err := connectChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	limit := jobLimit(cmd, cfg.ReserveLimit)
	res, err := enrich.NewResolver(wh, chainClient, enrichOptions(cfg), logger).Run(ctx, limit)
	if printErr := printResult(res); printErr != nil {
		return printErr
	}
	return err
}

// jobLimit prefers an explicit --limit flag over the configured default.
func jobLimit(cmd *cobra.Command, fallback int) int {
	if cmd.Flags().Changed("limit") {
		limit, _ := cmd.Flags().GetInt("limit")
		return limit
	}
	return fallback
}

func printResult(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
