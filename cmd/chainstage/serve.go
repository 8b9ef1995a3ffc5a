package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainstage/internal/chain"
	"chainstage/internal/config"
	"chainstage/internal/discovery"
	"chainstage/internal/enrich"
	"chainstage/internal/ingest"
	"chainstage/internal/server"
	"chainstage/internal/transform"
	"chainstage/internal/warehouse"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and jobs HTTP server",
		RunE:  runServe,
	}

	addWarehouseFlags(cmd)
	addChainFlags(cmd)
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().String("auth-token", "", "bearer token for /jobs endpoints (empty disables auth)")
	cmd.Flags().Bool("dedupe-blocks", true, "drop re-deliveries of an already stored block")
	cmd.Flags().Int("validate-limit", 50, "default validation limit per run")
	cmd.Flags().Int("reserve-limit", 20, "default reserve resolution limit per run")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	svc := server.Services{
		Ingestor:  ingest.NewIngestor(wh, cfg.DedupeBlocks, logger),
		Refresher: transform.NewEngine(wh, logger),
		Discovery: discovery.NewJob(wh, logger),
	}

	// Enrichment needs an RPC endpoint; without one the server still
	// ingests and transforms.
	if cfg.RPCURL != "" {
		chainClient, err := connectChain(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer chainClient.Close()

		opts := enrichOptions(cfg)
		svc.Validator = enrich.NewValidator(wh, chainClient, opts, logger)
		svc.Resolver = enrich.NewResolver(wh, chainClient, opts, logger)
	}

	srv := server.New(svc, server.Config{
		AuthToken:     cfg.AuthToken,
		ValidateLimit: cfg.ValidateLimit,
		ReserveLimit:  cfg.ReserveLimit,
	}, logger)

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Info("chainstage serving",
		zap.String("listen", cfg.Listen),
		zap.Bool("dedupe_blocks", cfg.DedupeBlocks),
		zap.Bool("auth", cfg.AuthToken != ""),
		zap.Bool("enrichment", svc.Validator != nil),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// connectWarehouse builds the client and retries the first ping so the
// service survives a database that comes up after it does.
func connectWarehouse(ctx context.Context, cfg config.Config) (*warehouse.Client, error) {
	wh, err := warehouse.NewClient(ctx, cfg.DatabaseURL, cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}
	if err := chain.WithRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, wh.Ping); err != nil {
		wh.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return wh, nil
}

// connectChain dials the RPC endpoint and fetches the chain id up front, so a
// misconfigured endpoint fails at startup instead of on the first enrichment
// call.
func connectChain(ctx context.Context, cfg config.Config, logger *zap.Logger) (*chain.Client, error) {
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	chainID, err := chainClient.ChainID(callCtx)
	cancel()
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("verify rpc: %w", err)
	}
	logger.Info("rpc connected", zap.String("chain_id", chainID.String()))
	return chainClient, nil
}

func enrichOptions(cfg config.Config) enrich.Options {
	return enrich.Options{
		BatchSize:    cfg.ValidateBatchSize,
		BatchPause:   cfg.ValidateBatchPause,
		CallTimeout:  cfg.CallTimeout,
		FetchTimeout: cfg.FetchTimeout,
	}
}
