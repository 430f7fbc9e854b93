package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"raffleHarness/internal/chain"
	"raffleHarness/internal/config"
	"raffleHarness/internal/raffle"
	"raffleHarness/internal/vrf"
)

func main() {
	root := &cobra.Command{
		Use:          "raffle",
		Short:        "Operate and verify a provably fair raffle",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newSyncFrontendCmd(),
		newEnterCmd(),
		newCheckUpkeepCmd(),
		newPerformUpkeepCmd(),
		newFulfillCmd(),
		newStatusCmd(),
		newRoundCmd(),
		newAwaitWinnerCmd(),
		newVerifyCmd(),
		newIndexCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "JSON-RPC URL (http or ws)")
	cmd.Flags().String("raffle", "", "raffle contract address")
	cmd.Flags().Duration("poll-interval", 4*time.Second, "log polling interval when the endpoint has no subscriptions")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addSignerFlag(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "hex private key of the sending account")
}

func addTimeoutFlag(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for WinnerPicked")
}

// app bundles what a subcommand needs once configuration is loaded.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	chainID *big.Int
	raffle  *raffle.Raffle
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
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

// openApp loads configuration, dials the node and binds the raffle.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireRaffle(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(cfg.Raffle) {
		return nil, fmt.Errorf("invalid raffle address: %s", cfg.Raffle)
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	binding, err := raffle.NewRaffle(common.HexToAddress(cfg.Raffle), client.Backend())
	if err != nil {
		client.Close()
		return nil, err
	}
	binding.SetPollInterval(cfg.PollInterval)

	logger = logger.With(zap.String("chain_id", chainID.String()), zap.String("raffle", binding.Address().Hex()))
	return &app{cfg: cfg, logger: logger, client: client, chainID: chainID, raffle: binding}, nil
}

func (a *app) Close() {
	a.client.Close()
	_ = a.logger.Sync()
}

// signer builds transact opts from a hex private key.
func (a *app) signer(key string) (*bind.TransactOpts, error) {
	if key == "" {
		return nil, fmt.Errorf("private key is required")
	}
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return bind.NewKeyedTransactorWithChainID(pk, a.chainID)
}

func (a *app) players() ([]*bind.TransactOpts, error) {
	out := make([]*bind.TransactOpts, 0, len(a.cfg.PlayerKeys))
	for i, key := range a.cfg.PlayerKeys {
		opts, err := a.signer(key)
		if err != nil {
			return nil, fmt.Errorf("player key %d: %w", i, err)
		}
		out = append(out, opts)
	}
	return out, nil
}

// coordinator binds the VRF coordinator mock, or returns nil when none is configured.
func (a *app) coordinator() (*vrf.CoordinatorMock, error) {
	if a.cfg.Coordinator == "" {
		return nil, nil
	}
	if !common.IsHexAddress(a.cfg.Coordinator) {
		return nil, fmt.Errorf("invalid coordinator address: %s", a.cfg.Coordinator)
	}
	return vrf.NewCoordinatorMock(common.HexToAddress(a.cfg.Coordinator), a.client.Backend())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseWei(value string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount: %q", value)
	}
	return wei, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
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
