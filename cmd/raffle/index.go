package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"raffleHarness/internal/chain"
	"raffleHarness/internal/indexer"
	"raffleHarness/internal/model"
	"raffleHarness/internal/raffle"
	"raffleHarness/internal/storage"
	"raffleHarness/internal/storage/postgres"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Backfill raffle events into JSONL or Postgres",
		RunE:  runIndex,
	}
	cmd.Flags().String("rpc", "", "JSON-RPC URL")
	cmd.Flags().StringSlice("raffle", nil, "raffle contract addresses (comma-separated)")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("sink", "jsonl", "storage sink (jsonl, postgres)")
	cmd.Flags().String("out", "./data/raffle_events.jsonl", "output JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (jsonl sink)")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.RequireRPC(); err != nil {
		return err
	}
	addresses, err := indexer.ParseAddresses(cfg.Raffles)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("raffle address is required")
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	binding, err := raffle.NewRaffle(addresses[0], chainClient.Backend())
	if err != nil {
		return err
	}
	decoder, err := indexer.NewDecoder(binding)
	if err != nil {
		return err
	}

	var (
		sink       storage.Storage
		checkpoint indexer.Checkpointer
	)
	switch cfg.Sink {
	case "jsonl":
		sink = storage.NewJsonlStorage(cfg.Out)
		checkpoint = indexer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sink = store
		if cfg.CheckpointEnabled {
			chainID, err := chainClient.GetChainID(ctx)
			if err != nil {
				return fmt.Errorf("get chain id: %w", err)
			}
			checkpoint = indexer.DBCheckpoint{Store: store, Name: stateName(chainID.Uint64(), addresses)}
		}
	default:
		return fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, decoder, sink, checkpoint, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("sink", cfg.Sink),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("indexer done",
		zap.Uint64("from", stats.From),
		zap.Uint64("to", stats.To),
		zap.Int("batches", stats.Batches),
		zap.Int("events", stats.Records),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("decode_errors", len(stats.DecodeErrors)),
	)
	return nil
}

func stateName(chainID uint64, addresses []common.Address) string {
	parts := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		parts = append(parts, strings.ToLower(addr.Hex()))
	}
	return fmt.Sprintf("raffle:%d:%s", chainID, strings.Join(parts, ","))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past winners",
		RunE:  runHistory,
	}
	addChainFlags(cmd)
	cmd.Flags().String("source", "chain", "where to read winners from (chain, jsonl, postgres)")
	cmd.Flags().Uint64("from", 0, "first block to scan (chain source)")
	cmd.Flags().String("out", "./data/raffle_events.jsonl", "events JSONL written by index (jsonl source)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (postgres source)")
	cmd.Flags().Int("limit", 20, "maximum winners to list (postgres source)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")
	if source == "jsonl" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		records, err := storage.ReadEvents(cfg.Out)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), model.Winners(records, raffle.EventWinnerPicked))
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	winners, err := readWinners(ctx, cmd, a, source)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), winners)
}

func readWinners(ctx context.Context, cmd *cobra.Command, a *app, source string) ([]model.Winner, error) {
	switch source {
	case "postgres":
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		limit, _ := cmd.Flags().GetInt("limit")
		return store.RecentWinners(ctx, a.chainID.Uint64(), a.raffle.Address().Hex(), limit)
	case "chain":
		events, err := a.raffle.FilterWinnerPicked(raffle.FilterOpts{Context: ctx, Start: a.cfg.FromBlock})
		if err != nil {
			return nil, err
		}
		out := make([]model.Winner, 0, len(events))
		for _, ev := range events {
			ts, err := a.client.BlockTimestamp(ctx, ev.Raw.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", ev.Raw.BlockNumber, err)
			}
			out = append(out, model.Winner{
				ChainID:     a.chainID.Uint64(),
				Address:     ev.Raw.Address.Hex(),
				Winner:      ev.Winner.Hex(),
				BlockNumber: ev.Raw.BlockNumber,
				TxHash:      ev.Raw.TxHash.Hex(),
				Timestamp:   ts,
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}
