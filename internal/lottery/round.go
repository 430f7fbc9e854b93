package lottery

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"raffleHarness/internal/confirm"
	"raffleHarness/internal/raffle"
	"raffleHarness/internal/upkeep"
)

// Contract is the raffle surface driven by a round.
type Contract interface {
	upkeep.Contract
	EntranceFee(ctx context.Context) (*big.Int, error)
	Interval(ctx context.Context) (*big.Int, error)
	EnterRaffle(opts *bind.TransactOpts, value *big.Int) (*types.Transaction, error)
	RaffleState(ctx context.Context) (raffle.State, error)
	NumberOfPlayers(ctx context.Context) (*big.Int, error)
	LatestTimeStamp(ctx context.Context) (*big.Int, error)
	RecentWinner(ctx context.Context) (common.Address, error)
	Player(ctx context.Context, index *big.Int) (common.Address, error)
	WatchWinnerPicked(ctx context.Context, sink chan<- *raffle.WinnerPicked) (event.Subscription, error)
	WatchRaffleEnter(ctx context.Context, sink chan<- *raffle.RaffleEnter) (event.Subscription, error)
}

// Fulfiller delivers randomness for a pending request (the VRF coordinator mock).
type Fulfiller interface {
	FulfillRandomWords(opts *bind.TransactOpts, requestID *big.Int, consumer common.Address) (*types.Transaction, error)
}

// Chain is the node surface used by rounds.
type Chain interface {
	upkeep.Miner
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	IncreaseTime(ctx context.Context, seconds uint64) error
	Mine(ctx context.Context) error
}

// Result summarizes a completed round.
type Result struct {
	RequestID           *big.Int
	Winner              common.Address
	Pot                 *big.Int
	Entrants            int
	StartTimestamp      *big.Int
	EndTimestamp        *big.Int
	WinnerBalanceBefore *big.Int
	WinnerBalanceAfter  *big.Int
	WinnerTxHash        common.Hash
	Elapsed             time.Duration
}

// Runner drives raffle rounds against a deployed contract.
type Runner struct {
	contract  Contract
	fulfiller Fulfiller
	chain     Chain
	trigger   *upkeep.Trigger
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRunner builds a Runner. fulfiller may be nil on live networks.
func NewRunner(contract Contract, fulfiller Fulfiller, chainClient Chain, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		contract:  contract,
		fulfiller: fulfiller,
		chain:     chainClient,
		trigger:   upkeep.NewTrigger(contract, chainClient, logger),
		timeout:   timeout,
		logger:    logger,
	}
}

// Trigger exposes the upkeep trigger bound to this runner.
func (r *Runner) Trigger() *upkeep.Trigger {
	return r.trigger
}

// Enter pays the entrance fee from each account and waits for inclusion.
func (r *Runner) Enter(ctx context.Context, accounts []*bind.TransactOpts, value *big.Int) error {
	for _, account := range accounts {
		opts := withContext(ctx, account)
		tx, err := r.contract.EnterRaffle(opts, value)
		if err != nil {
			return fmt.Errorf("enter raffle from %s: %w", account.From.Hex(), err)
		}
		if _, err := r.chain.WaitMined(ctx, tx); err != nil {
			return fmt.Errorf("enter raffle from %s: %w", account.From.Hex(), err)
		}
		r.logger.Debug("entered raffle", zap.String("player", account.From.Hex()), zap.String("value", value.String()))
	}
	return nil
}

// AdvancePastInterval moves the dev network clock beyond the raffle interval
// and mines a block so checkUpkeep sees the new time.
func (r *Runner) AdvancePastInterval(ctx context.Context) error {
	interval, err := r.contract.Interval(ctx)
	if err != nil {
		return fmt.Errorf("get interval: %w", err)
	}
	if !interval.IsUint64() {
		return fmt.Errorf("interval does not fit in uint64: %s", interval)
	}
	if err := r.chain.IncreaseTime(ctx, interval.Uint64()+1); err != nil {
		return err
	}
	return r.chain.Mine(ctx)
}

// DevRound runs a full round on a development network: every entrant pays the
// fee, time is advanced past the interval, upkeep is performed, the
// coordinator mock fulfils the request, and the WinnerPicked post-conditions
// are verified.
func (r *Runner) DevRound(ctx context.Context, entrants []*bind.TransactOpts, operator *bind.TransactOpts) (Result, error) {
	if r.fulfiller == nil {
		return Result{}, fmt.Errorf("dev round requires a coordinator mock")
	}
	if len(entrants) == 0 {
		return Result{}, fmt.Errorf("dev round requires at least one entrant")
	}

	started := time.Now()
	fee, err := r.contract.EntranceFee(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get entrance fee: %w", err)
	}
	if err := r.Enter(ctx, entrants, fee); err != nil {
		return Result{}, err
	}

	startTS, err := r.contract.LatestTimeStamp(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get latest timestamp: %w", err)
	}
	if err := r.AdvancePastInterval(ctx); err != nil {
		return Result{}, err
	}

	pot, err := r.pot(ctx, fee)
	if err != nil {
		return Result{}, err
	}
	capture := &roundCapture{}

	obs := &confirm.Observer[*raffle.WinnerPicked]{
		Name:      raffle.EventWinnerPicked,
		Subscribe: r.contract.WatchWinnerPicked,
		Match: func(ev *raffle.WinnerPicked) bool {
			return capture.fulfillReceipt != nil && ev.Raw.TxHash == capture.fulfillReceipt.TxHash
		},
		Check: func(ctx context.Context, ev *raffle.WinnerPicked) error {
			return r.checkRound(ctx, ev, startTS, pot, capture)
		},
		Timeout: r.timeout,
		Logger:  r.logger,
	}

	ev, err := obs.Await(ctx, func(ctx context.Context) error {
		requestID, _, err := r.trigger.Perform(ctx, operator)
		if err != nil {
			return err
		}
		capture.requestID = requestID

		balances, err := r.balances(ctx, addressesOf(entrants))
		if err != nil {
			return err
		}
		capture.balances = balances

		tx, err := r.fulfiller.FulfillRandomWords(withContext(ctx, operator), requestID, r.contract.Address())
		if err != nil {
			return fmt.Errorf("fulfill random words %s: %w", requestID, err)
		}
		receipt, err := r.chain.WaitMined(ctx, tx)
		if err != nil {
			return fmt.Errorf("fulfill random words %s: %w", requestID, err)
		}
		capture.fulfillReceipt = receipt
		capture.fulfiller = operator.From
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	result := capture.result(ev, len(entrants), pot, startTS, time.Since(started))
	r.logger.Info("round complete",
		zap.String("winner", result.Winner.Hex()),
		zap.String("request_id", result.RequestID.String()),
		zap.String("pot", pot.String()),
		zap.Int("entrants", len(entrants)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// StagingRound enters once and waits for the live automation and VRF
// services to pick the winner.
func (r *Runner) StagingRound(ctx context.Context, entrant *bind.TransactOpts) (Result, error) {
	started := time.Now()
	fee, err := r.contract.EntranceFee(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get entrance fee: %w", err)
	}
	startTS, err := r.contract.LatestTimeStamp(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get latest timestamp: %w", err)
	}

	capture := &roundCapture{}
	obs := &confirm.Observer[*raffle.WinnerPicked]{
		Name:      raffle.EventWinnerPicked,
		Subscribe: r.contract.WatchWinnerPicked,
		Check: func(ctx context.Context, ev *raffle.WinnerPicked) error {
			if _, err := r.contract.Player(ctx, big.NewInt(0)); err == nil {
				return fmt.Errorf("players were not reset")
			}
			if ev.Winner != entrant.From {
				return fmt.Errorf("winner %s, want %s", ev.Winner.Hex(), entrant.From.Hex())
			}
			return r.checkRound(ctx, ev, startTS, capture.pot, capture)
		},
		Timeout: r.timeout,
		Logger:  r.logger,
	}

	ev, err := obs.Await(ctx, func(ctx context.Context) error {
		r.logger.Info("entering raffle", zap.String("player", entrant.From.Hex()), zap.String("fee", fee.String()))
		tx, err := r.contract.EnterRaffle(withContext(ctx, entrant), fee)
		if err != nil {
			return fmt.Errorf("enter raffle: %w", err)
		}
		if _, err := r.chain.WaitMined(ctx, tx); err != nil {
			return fmt.Errorf("enter raffle: %w", err)
		}
		pot, err := r.pot(ctx, fee)
		if err != nil {
			return err
		}
		capture.pot = pot
		balances, err := r.balances(ctx, []common.Address{entrant.From})
		if err != nil {
			return err
		}
		capture.balances = balances
		r.logger.Info("entered, waiting for winner", zap.Duration("timeout", r.timeout))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return capture.result(ev, 1, capture.pot, startTS, time.Since(started)), nil
}

type roundCapture struct {
	requestID      *big.Int
	pot            *big.Int
	balances       map[common.Address]*big.Int
	fulfillReceipt *types.Receipt
	fulfiller      common.Address
	endTS          *big.Int
	winnerAfter    *big.Int
}

func (c *roundCapture) result(ev *raffle.WinnerPicked, entrants int, pot, startTS *big.Int, elapsed time.Duration) Result {
	return Result{
		RequestID:           c.requestID,
		Winner:              ev.Winner,
		Pot:                 pot,
		Entrants:            entrants,
		StartTimestamp:      startTS,
		EndTimestamp:        c.endTS,
		WinnerBalanceBefore: c.balances[ev.Winner],
		WinnerBalanceAfter:  c.winnerAfter,
		WinnerTxHash:        ev.Raw.TxHash,
		Elapsed:             elapsed,
	}
}

// checkRound verifies the state after WinnerPicked: players cleared, state
// OPEN, timestamp advanced, and the winner credited with the whole pot.
func (r *Runner) checkRound(ctx context.Context, ev *raffle.WinnerPicked, startTS, pot *big.Int, capture *roundCapture) error {
	players, err := r.contract.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("get number of players: %w", err)
	}
	if players.Sign() != 0 {
		return fmt.Errorf("number of players = %s, want 0", players)
	}

	state, err := r.contract.RaffleState(ctx)
	if err != nil {
		return fmt.Errorf("get raffle state: %w", err)
	}
	if state != raffle.StateOpen {
		return fmt.Errorf("raffle state = %s, want %s", state, raffle.StateOpen)
	}

	endTS, err := r.contract.LatestTimeStamp(ctx)
	if err != nil {
		return fmt.Errorf("get latest timestamp: %w", err)
	}
	if endTS.Cmp(startTS) <= 0 {
		return fmt.Errorf("latest timestamp %s did not advance past %s", endTS, startTS)
	}
	capture.endTS = endTS

	recent, err := r.contract.RecentWinner(ctx)
	if err != nil {
		return fmt.Errorf("get recent winner: %w", err)
	}
	if recent != ev.Winner {
		return fmt.Errorf("recent winner %s, event winner %s", recent.Hex(), ev.Winner.Hex())
	}

	before, ok := capture.balances[ev.Winner]
	if !ok {
		return fmt.Errorf("winner %s is not an entrant", ev.Winner.Hex())
	}
	after, err := r.chain.BalanceAt(ctx, ev.Winner)
	if err != nil {
		return fmt.Errorf("get winner balance: %w", err)
	}
	capture.winnerAfter = after

	want := new(big.Int).Add(before, pot)
	if capture.fulfillReceipt != nil && ev.Winner == capture.fulfiller {
		want.Sub(want, gasCost(capture.fulfillReceipt))
	}
	if after.Cmp(want) != 0 {
		return fmt.Errorf("winner balance = %s, want %s", after, want)
	}
	return nil
}

// pot is what the raffle pays out: every recorded entry, including ones made
// before this round started.
func (r *Runner) pot(ctx context.Context, fee *big.Int) (*big.Int, error) {
	players, err := r.contract.NumberOfPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get number of players: %w", err)
	}
	return new(big.Int).Mul(fee, players), nil
}

func (r *Runner) balances(ctx context.Context, accounts []common.Address) (map[common.Address]*big.Int, error) {
	var mu sync.Mutex
	out := make(map[common.Address]*big.Int, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			balance, err := r.chain.BalanceAt(gctx, account)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", account.Hex(), err)
			}
			mu.Lock()
			out[account] = balance
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func gasCost(receipt *types.Receipt) *big.Int {
	if receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
}

func addressesOf(accounts []*bind.TransactOpts) []common.Address {
	out := make([]common.Address, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, account.From)
	}
	return out
}

func withContext(ctx context.Context, opts *bind.TransactOpts) *bind.TransactOpts {
	call := *opts
	call.Context = ctx
	return &call
}
