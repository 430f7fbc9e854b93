package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"raffleHarness/internal/frontend"
	"raffleHarness/internal/raffle"
	"raffleHarness/internal/upkeep"
)

func newSyncFrontendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-frontend",
		Short: "Publish the raffle address and ABI to the front end",
		RunE:  runSyncFrontend,
	}
	addChainFlags(cmd)
	cmd.Flags().Bool("update-front-end", false, "write the front-end files (env RAFFLE_UPDATE_FRONT_END)")
	cmd.Flags().String("front-end-address-file", "../nextjs-smartcontract-lottery/constants/contractAddress.json", "address registry path")
	cmd.Flags().String("front-end-abi-file", "../nextjs-smartcontract-lottery/constants/abi.json", "abi path")
	cmd.Flags().String("artifact", "./deployments/localhost/Raffle.json", "Hardhat deployment or build artifact whose abi is published")
	return cmd
}

func runSyncFrontend(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	artifact, err := frontend.ParseArtifactFile(a.cfg.ArtifactFile)
	if err != nil {
		return err
	}
	if common.IsHexAddress(artifact.Address) && common.HexToAddress(artifact.Address) != a.raffle.Address() {
		a.logger.Warn("artifact was deployed at a different address",
			zap.String("artifact", a.cfg.ArtifactFile),
			zap.String("artifact_address", artifact.Address),
			zap.String("raffle", a.raffle.Address().Hex()),
		)
	}

	syncer := &frontend.Syncer{
		Enabled:     a.cfg.UpdateFrontEnd,
		AddressFile: a.cfg.FrontEndAddressFile,
		ABIFile:     a.cfg.FrontEndABIFile,
		Logger:      a.logger,
	}
	return syncer.Sync(a.chainID.Uint64(), a.raffle.Address(), artifact.ABI)
}

func newEnterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Enter the raffle",
		RunE:  runEnter,
	}
	addChainFlags(cmd)
	addSignerFlag(cmd)
	cmd.Flags().String("value", "", "wei to send, defaults to the entrance fee")
	return cmd
}

func runEnter(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := a.signer(a.cfg.PrivateKey)
	if err != nil {
		return err
	}
	opts.Context = ctx

	value, err := a.raffle.EntranceFee(ctx)
	if err != nil {
		return fmt.Errorf("get entrance fee: %w", err)
	}
	if a.cfg.Value != "" {
		if value, err = parseWei(a.cfg.Value); err != nil {
			return err
		}
	}

	tx, err := a.raffle.EnterRaffle(opts, value)
	if err != nil {
		return fmt.Errorf("enter raffle: %w", err)
	}
	receipt, err := a.client.WaitMined(ctx, tx)
	if err != nil {
		return fmt.Errorf("enter raffle: %w", err)
	}
	a.logger.Info("entered raffle",
		zap.String("player", opts.From.Hex()),
		zap.String("value", value.String()),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Stringer("block_number", receipt.BlockNumber),
	)
	return nil
}

func newCheckUpkeepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-upkeep",
		Short: "Report whether the raffle needs upkeep",
		RunE:  runCheckUpkeep,
	}
	addChainFlags(cmd)
	return cmd
}

func runCheckUpkeep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.raffle.CheckUpkeep(ctx, []byte{})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"upkeep_needed": status.UpkeepNeeded,
		"perform_data":  common.Bytes2Hex(status.PerformData),
	})
}

func newPerformUpkeepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perform-upkeep",
		Short: "Perform upkeep and print the randomness request id",
		RunE:  runPerformUpkeep,
	}
	addChainFlags(cmd)
	addSignerFlag(cmd)
	return cmd
}

func runPerformUpkeep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts, err := a.signer(a.cfg.PrivateKey)
	if err != nil {
		return err
	}

	trigger := upkeep.NewTrigger(a.raffle, a.client, a.logger)
	requestID, receipt, err := trigger.Perform(ctx, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]string{
		"request_id": requestID.String(),
		"tx_hash":    receipt.TxHash.Hex(),
	})
}

func newFulfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fulfill",
		Short: "Fulfil a randomness request through the VRF coordinator mock",
		RunE:  runFulfill,
	}
	addChainFlags(cmd)
	addSignerFlag(cmd)
	cmd.Flags().String("coordinator", "", "VRF coordinator mock address")
	cmd.Flags().String("request-id", "", "request id returned by perform-upkeep")
	return cmd
}

func runFulfill(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	coordinator, err := a.coordinator()
	if err != nil {
		return err
	}
	if coordinator == nil {
		return fmt.Errorf("coordinator address is required")
	}
	requestFlag, _ := cmd.Flags().GetString("request-id")
	requestID, err := parseWei(requestFlag)
	if err != nil {
		return fmt.Errorf("request id: %w", err)
	}
	opts, err := a.signer(a.cfg.PrivateKey)
	if err != nil {
		return err
	}
	opts.Context = ctx

	tx, err := coordinator.FulfillRandomWords(opts, requestID, a.raffle.Address())
	if err != nil {
		return err
	}
	receipt, err := a.client.WaitMined(ctx, tx)
	if err != nil {
		return fmt.Errorf("fulfill random words: %w", err)
	}
	if _, ok := coordinator.FulfilledRequest(receipt); !ok {
		a.logger.Warn("receipt carries no RandomWordsFulfilled event", zap.String("tx_hash", tx.Hash().Hex()))
	}
	a.logger.Info("request fulfilled", zap.String("request_id", requestID.String()), zap.String("tx_hash", tx.Hash().Hex()))
	return nil
}

// Status is a point-in-time view of the raffle.
type Status struct {
	State           string `json:"state"`
	EntranceFee     string `json:"entrance_fee"`
	Interval        string `json:"interval"`
	Players         string `json:"players"`
	LatestTimestamp string `json:"latest_timestamp"`
	RecentWinner    string `json:"recent_winner"`
	Balance         string `json:"balance"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the raffle state",
		RunE:  runStatus,
	}
	addChainFlags(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := readStatus(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), status)
}

func readStatus(ctx context.Context, a *app) (Status, error) {
	var (
		status  Status
		state   raffle.State
		winner  common.Address
		fee     *big.Int
		period  *big.Int
		players *big.Int
		ts      *big.Int
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { state, err = a.raffle.RaffleState(gctx); return })
	g.Go(func() (err error) { fee, err = a.raffle.EntranceFee(gctx); return })
	g.Go(func() (err error) { period, err = a.raffle.Interval(gctx); return })
	g.Go(func() (err error) { players, err = a.raffle.NumberOfPlayers(gctx); return })
	g.Go(func() (err error) { ts, err = a.raffle.LatestTimeStamp(gctx); return })
	g.Go(func() (err error) { winner, err = a.raffle.RecentWinner(gctx); return })
	g.Go(func() (err error) { balance, err = a.client.BalanceAt(gctx, a.raffle.Address()); return })
	if err := g.Wait(); err != nil {
		return status, err
	}

	status = Status{
		State:           state.String(),
		EntranceFee:     fee.String(),
		Interval:        period.String(),
		Players:         players.String(),
		LatestTimestamp: ts.String(),
		RecentWinner:    winner.Hex(),
		Balance:         balance.String(),
	}
	return status, nil
}
