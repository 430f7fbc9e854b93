package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"raffleHarness/internal/confirm"
	"raffleHarness/internal/lottery"
	"raffleHarness/internal/raffle"
)

func newRoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Run a raffle round end to end",
		Long: "With --coordinator set, every player enters, time is advanced, upkeep is performed and the " +
			"coordinator mock fulfils the request (development network). Without it, the first player " +
			"enters once and the live automation and VRF services are awaited.",
		RunE: runRound,
	}
	addChainFlags(cmd)
	addSignerFlag(cmd)
	addTimeoutFlag(cmd)
	cmd.Flags().String("coordinator", "", "VRF coordinator mock address (development networks)")
	cmd.Flags().StringSlice("player-keys", nil, "hex private keys of the entrants (comma-separated)")
	cmd.Flags().Int("entrants", 3, "number of player keys to use on development networks")
	return cmd
}

func runRound(cmd *cobra.Command, _ []string) error {
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
	players, err := a.players()
	if err != nil {
		return err
	}

	var result lottery.Result
	if coordinator != nil {
		operator, err := a.signer(a.cfg.PrivateKey)
		if err != nil {
			return err
		}
		if a.cfg.Entrants > 0 && len(players) > a.cfg.Entrants {
			players = players[:a.cfg.Entrants]
		}
		if len(players) == 0 {
			players = []*bind.TransactOpts{operator}
		}
		runner := lottery.NewRunner(a.raffle, coordinator, a.client, a.cfg.Timeout, a.logger)
		result, err = runner.DevRound(ctx, players, operator)
		if err != nil {
			return err
		}
	} else {
		entrant, err := stagingEntrant(a, players)
		if err != nil {
			return err
		}
		runner := lottery.NewRunner(a.raffle, nil, a.client, a.cfg.Timeout, a.logger)
		result, err = runner.StagingRound(ctx, entrant)
		if err != nil {
			return err
		}
	}

	return printJSON(cmd.OutOrStdout(), roundOutput(result))
}

func stagingEntrant(a *app, players []*bind.TransactOpts) (*bind.TransactOpts, error) {
	if len(players) > 0 {
		return players[0], nil
	}
	return a.signer(a.cfg.PrivateKey)
}

func roundOutput(r lottery.Result) map[string]string {
	out := map[string]string{
		"winner":         r.Winner.Hex(),
		"pot":            r.Pot.String(),
		"entrants":       fmt.Sprintf("%d", r.Entrants),
		"winner_tx_hash": r.WinnerTxHash.Hex(),
		"elapsed":        r.Elapsed.String(),
	}
	if r.RequestID != nil {
		out["request_id"] = r.RequestID.String()
	}
	if r.StartTimestamp != nil && r.EndTimestamp != nil {
		out["start_timestamp"] = r.StartTimestamp.String()
		out["end_timestamp"] = r.EndTimestamp.String()
	}
	if r.WinnerBalanceBefore != nil && r.WinnerBalanceAfter != nil {
		out["winner_balance_before"] = r.WinnerBalanceBefore.String()
		out["winner_balance_after"] = r.WinnerBalanceAfter.String()
	}
	return out
}

func newAwaitWinnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "await-winner",
		Short: "Block until the next WinnerPicked event",
		RunE:  runAwaitWinner,
	}
	addChainFlags(cmd)
	addTimeoutFlag(cmd)
	return cmd
}

func runAwaitWinner(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	obs := &confirm.Observer[*raffle.WinnerPicked]{
		Name:      raffle.EventWinnerPicked,
		Subscribe: a.raffle.WatchWinnerPicked,
		Timeout:   a.cfg.Timeout,
		Logger:    a.logger,
	}
	a.logger.Info("waiting for winner", zap.Duration("timeout", a.cfg.Timeout))
	ev, err := obs.Await(ctx, nil)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"winner":       ev.Winner.Hex(),
		"tx_hash":      ev.Raw.TxHash.Hex(),
		"block_number": ev.Raw.BlockNumber,
	})
}
