package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"raffleHarness/internal/suite"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the raffle behaviour checks against a development network",
		RunE:  runVerify,
	}
	addChainFlags(cmd)
	addSignerFlag(cmd)
	addTimeoutFlag(cmd)
	cmd.Flags().String("coordinator", "", "VRF coordinator mock address")
	cmd.Flags().StringSlice("player-keys", nil, "hex private keys of the entrants (comma-separated)")
	cmd.Flags().Uint64("interval", 0, "expected raffle interval in seconds, 0 skips the comparison")
	cmd.Flags().StringSlice("checks", nil, "run only these checks (comma-separated)")
	cmd.Flags().Bool("list", false, "list the checks and exit")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, check := range suite.DefaultChecks() {
			fmt.Fprintln(cmd.OutOrStdout(), check.Name)
		}
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	deployer, err := a.signer(a.cfg.PrivateKey)
	if err != nil {
		return err
	}
	players, err := a.players()
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return fmt.Errorf("at least one player key is required")
	}

	env := suite.Env{
		Contract: a.raffle,
		Network:  a.client,
		Deployer: deployer,
		Players:  players,
		Interval: a.cfg.Interval,
		Timeout:  a.cfg.Timeout,
	}
	coordinator, err := a.coordinator()
	if err != nil {
		return err
	}
	if coordinator != nil {
		env.Fulfiller = coordinator
	}

	s := suite.New(env, a.logger)
	if err := s.Only(a.cfg.Checks...); err != nil {
		return err
	}
	report, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d checks failed", report.Failed, len(report.Outcomes))
	}
	return nil
}
