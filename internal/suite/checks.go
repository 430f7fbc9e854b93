package suite

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"raffleHarness/internal/confirm"
	"raffleHarness/internal/raffle"
)

// DefaultChecks lists the raffle behaviour checks in execution order.
func DefaultChecks() []Check {
	return []Check{
		{Name: "constructor/initializes", Run: checkConstructor},
		{Name: "enter/reverts-below-fee", Run: checkEnterBelowFee},
		{Name: "enter/records-player", Run: checkEnterRecordsPlayer},
		{Name: "enter/emits-event", Run: checkEnterEmitsEvent},
		{Name: "enter/blocked-while-calculating", Run: checkEnterWhileCalculating},
		{Name: "check-upkeep/false-without-players", Run: checkUpkeepWithoutPlayers},
		{Name: "check-upkeep/false-when-not-open", Run: checkUpkeepNotOpen},
		{Name: "check-upkeep/false-before-interval", Run: checkUpkeepBeforeInterval},
		{Name: "check-upkeep/true-when-ready", Run: checkUpkeepReady},
		{Name: "perform-upkeep/runs-when-needed", Run: checkPerformWhenNeeded},
		{Name: "perform-upkeep/reverts-when-not-needed", Run: checkPerformNotNeeded},
		{Name: "perform-upkeep/requests-winner", Run: checkPerformRequestsWinner},
		{Name: "fulfill/requires-request", Run: checkFulfillRequiresRequest},
		{Name: "round/picks-winner-and-pays", Run: checkFullRound},
	}
}

func checkConstructor(ctx context.Context, s *Session) error {
	state, err := s.Contract.RaffleState(ctx)
	if err != nil {
		return err
	}
	if state != raffle.StateOpen {
		return fmt.Errorf("raffle state = %s, want %s", state, raffle.StateOpen)
	}
	if s.Interval == 0 {
		return nil
	}
	interval, err := s.Contract.Interval(ctx)
	if err != nil {
		return err
	}
	if !interval.IsUint64() || interval.Uint64() != s.Interval {
		return fmt.Errorf("interval = %s, want %d", interval, s.Interval)
	}
	return nil
}

func checkEnterBelowFee(ctx context.Context, s *Session) error {
	player, err := s.Player(0)
	if err != nil {
		return err
	}
	err = s.Runner.Enter(ctx, []*bind.TransactOpts{player}, big.NewInt(0))
	return expectRevert(err, raffle.ErrNotEnoughETHEntered)
}

func checkEnterRecordsPlayer(ctx context.Context, s *Session) error {
	player, err := s.Player(0)
	if err != nil {
		return err
	}
	if err := s.Runner.Enter(ctx, []*bind.TransactOpts{player}, s.Fee()); err != nil {
		return err
	}
	recorded, err := s.Contract.Player(ctx, big.NewInt(0))
	if err != nil {
		return err
	}
	if recorded != player.From {
		return fmt.Errorf("player[0] = %s, want %s", recorded.Hex(), player.From.Hex())
	}
	return nil
}

func checkEnterEmitsEvent(ctx context.Context, s *Session) error {
	player, err := s.Player(0)
	if err != nil {
		return err
	}
	obs := &confirm.Observer[*raffle.RaffleEnter]{
		Name:      raffle.EventRaffleEnter,
		Subscribe: s.Contract.WatchRaffleEnter,
		Match:     func(ev *raffle.RaffleEnter) bool { return ev.Player == player.From },
		Timeout:   s.Timeout,
	}
	_, err = obs.Await(ctx, func(ctx context.Context) error {
		return s.Runner.Enter(ctx, []*bind.TransactOpts{player}, s.Fee())
	})
	return err
}

func checkEnterWhileCalculating(ctx context.Context, s *Session) error {
	player, err := s.EnterAndAdvance(ctx)
	if err != nil {
		return err
	}
	if _, _, err := s.Runner.Trigger().Perform(ctx, s.Deployer); err != nil {
		return err
	}
	err = s.Runner.Enter(ctx, []*bind.TransactOpts{player}, s.Fee())
	return expectRevert(err, raffle.ErrNotOpen)
}

func checkUpkeepWithoutPlayers(ctx context.Context, s *Session) error {
	if err := s.Runner.AdvancePastInterval(ctx); err != nil {
		return err
	}
	return expectUpkeep(ctx, s, false)
}

func checkUpkeepNotOpen(ctx context.Context, s *Session) error {
	if _, err := s.EnterAndAdvance(ctx); err != nil {
		return err
	}
	if _, _, err := s.Runner.Trigger().Perform(ctx, s.Deployer); err != nil {
		return err
	}
	state, err := s.Contract.RaffleState(ctx)
	if err != nil {
		return err
	}
	if state != raffle.StateCalculating {
		return fmt.Errorf("raffle state = %s, want %s", state, raffle.StateCalculating)
	}
	return expectUpkeep(ctx, s, false)
}

// The interval runs from the last payout (or deployment), not from the entry,
// so the clock is stepped to two seconds short of it. A stale timer is first
// reset by a full round when a coordinator mock is available.
func checkUpkeepBeforeInterval(ctx context.Context, s *Session) error {
	player, err := s.Player(0)
	if err != nil {
		return err
	}
	elapsed, interval, err := s.SinceLastPayout(ctx)
	if err != nil {
		return err
	}
	if elapsed+2 >= interval {
		if s.Fulfiller == nil {
			return fmt.Errorf("precondition: %ds of the %ds interval already elapsed since the last payout and no coordinator mock is configured to reset it", elapsed, interval)
		}
		if _, err := s.Runner.DevRound(ctx, []*bind.TransactOpts{player}, s.Deployer); err != nil {
			return fmt.Errorf("reset interval: %w", err)
		}
	}

	if err := s.Runner.Enter(ctx, []*bind.TransactOpts{player}, s.Fee()); err != nil {
		return err
	}
	if elapsed, interval, err = s.SinceLastPayout(ctx); err != nil {
		return err
	}
	if elapsed+2 >= interval {
		return fmt.Errorf("precondition: %ds of the %ds interval elapsed while entering", elapsed, interval)
	}
	if err := s.Network.IncreaseTime(ctx, interval-elapsed-2); err != nil {
		return err
	}
	if err := s.Network.Mine(ctx); err != nil {
		return err
	}
	return expectUpkeep(ctx, s, false)
}

func checkUpkeepReady(ctx context.Context, s *Session) error {
	if _, err := s.EnterAndAdvance(ctx); err != nil {
		return err
	}
	return expectUpkeep(ctx, s, true)
}

func checkPerformWhenNeeded(ctx context.Context, s *Session) error {
	if _, err := s.EnterAndAdvance(ctx); err != nil {
		return err
	}
	_, _, err := s.Runner.Trigger().Perform(ctx, s.Deployer)
	return err
}

func checkPerformNotNeeded(ctx context.Context, s *Session) error {
	_, _, err := s.Runner.Trigger().Perform(ctx, s.Deployer)
	return expectRevert(err, raffle.ErrUpkeepNotNeeded)
}

func checkPerformRequestsWinner(ctx context.Context, s *Session) error {
	if _, err := s.EnterAndAdvance(ctx); err != nil {
		return err
	}
	requestID, _, err := s.Runner.Trigger().Perform(ctx, s.Deployer)
	if err != nil {
		return err
	}
	if requestID.Sign() <= 0 {
		return fmt.Errorf("request id = %s, want > 0", requestID)
	}
	state, err := s.Contract.RaffleState(ctx)
	if err != nil {
		return err
	}
	if state != raffle.StateCalculating {
		return fmt.Errorf("raffle state = %s, want %s", state, raffle.StateCalculating)
	}
	return nil
}

func checkFulfillRequiresRequest(ctx context.Context, s *Session) error {
	if s.Fulfiller == nil {
		return errors.New("no coordinator mock configured")
	}
	if _, err := s.EnterAndAdvance(ctx); err != nil {
		return err
	}
	for _, id := range []int64{0, 1} {
		opts := *s.Deployer
		opts.Context = ctx
		_, err := s.Fulfiller.FulfillRandomWords(&opts, big.NewInt(id), s.Contract.Address())
		if err := expectRevert(err, raffle.ErrNonexistentRequest); err != nil {
			return fmt.Errorf("request %d: %w", id, err)
		}
	}
	return nil
}

func checkFullRound(ctx context.Context, s *Session) error {
	_, err := s.Runner.DevRound(ctx, s.Players, s.Deployer)
	return err
}

func expectRevert(err, want error) error {
	if err == nil {
		return fmt.Errorf("expected revert %v, call succeeded", want)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected revert %v, got: %w", want, err)
	}
	return nil
}

func expectUpkeep(ctx context.Context, s *Session, want bool) error {
	needed, err := s.Runner.Trigger().Check(ctx)
	if err != nil {
		return err
	}
	if needed != want {
		return fmt.Errorf("upkeepNeeded = %t, want %t", needed, want)
	}
	return nil
}
