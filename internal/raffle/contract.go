package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"raffleHarness/internal/chain"
)

// Backend is the RPC surface the binding needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	chain.LogSource
}

// Raffle is a binding for a deployed Raffle contract.
type Raffle struct {
	address      common.Address
	abi          abi.ABI
	contract     *bind.BoundContract
	backend      Backend
	pollInterval time.Duration
}

// NewRaffle binds the contract at address.
func NewRaffle(address common.Address, backend Backend) (*Raffle, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse raffle abi: %w", err)
	}
	return &Raffle{
		address:      address,
		abi:          parsed,
		contract:     bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:      backend,
		pollInterval: chain.DefaultPollInterval,
	}, nil
}

// SetPollInterval sets the log polling cadence used when the endpoint cannot push logs.
func (r *Raffle) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		r.pollInterval = interval
	}
}

// Address returns the contract address.
func (r *Raffle) Address() common.Address {
	return r.address
}

// EnterRaffle pays value into the raffle.
func (r *Raffle) EnterRaffle(opts *bind.TransactOpts, value *big.Int) (*types.Transaction, error) {
	call := *opts
	call.Value = value
	tx, err := r.contract.Transact(&call, "enterRaffle")
	if err != nil {
		return nil, DecodeRevert(err)
	}
	return tx, nil
}

// PerformUpkeep asks the raffle to close the round and request randomness.
func (r *Raffle) PerformUpkeep(opts *bind.TransactOpts, performData []byte) (*types.Transaction, error) {
	if performData == nil {
		performData = []byte{}
	}
	tx, err := r.contract.Transact(opts, "performUpkeep", performData)
	if err != nil {
		return nil, DecodeRevert(err)
	}
	return tx, nil
}

// CheckUpkeep simulates checkUpkeep with eth_call.
func (r *Raffle) CheckUpkeep(ctx context.Context, checkData []byte) (UpkeepStatus, error) {
	if checkData == nil {
		checkData = []byte{}
	}
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "checkUpkeep", checkData); err != nil {
		return UpkeepStatus{}, DecodeRevert(err)
	}
	if len(out) != 2 {
		return UpkeepStatus{}, fmt.Errorf("checkUpkeep: unexpected output count %d", len(out))
	}
	needed, ok := out[0].(bool)
	if !ok {
		return UpkeepStatus{}, fmt.Errorf("checkUpkeep: unexpected upkeepNeeded type %T", out[0])
	}
	performData, _ := out[1].([]byte)
	return UpkeepStatus{UpkeepNeeded: needed, PerformData: performData}, nil
}

// EntranceFee returns getEntranceFee().
func (r *Raffle) EntranceFee(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "getEntranceFee")
}

// Interval returns getInterval() in seconds.
func (r *Raffle) Interval(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "getInterval")
}

// LatestTimeStamp returns getLatestTimeStamp().
func (r *Raffle) LatestTimeStamp(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "getLatestTimeStamp")
}

// NumberOfPlayers returns getNumberOfPlayers().
func (r *Raffle) NumberOfPlayers(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "getNumberOfPlayers")
}

// RaffleState returns getRaffleState().
func (r *Raffle) RaffleState(ctx context.Context) (State, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRaffleState"); err != nil {
		return 0, DecodeRevert(err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("getRaffleState: empty output")
	}
	value, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("getRaffleState: unexpected type %T", out[0])
	}
	return State(value), nil
}

// RecentWinner returns getRecentWinner().
func (r *Raffle) RecentWinner(ctx context.Context) (common.Address, error) {
	return r.callAddress(ctx, "getRecentWinner")
}

// Player returns getPlayer(index). Out of range indexes revert.
func (r *Raffle) Player(ctx context.Context, index *big.Int) (common.Address, error) {
	return r.callAddress(ctx, "getPlayer", index)
}

func (r *Raffle) callBig(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, DecodeRevert(err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty output", method)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return value, nil
}

func (r *Raffle) callAddress(ctx context.Context, method string, params ...interface{}) (common.Address, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return common.Address{}, DecodeRevert(err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("%s: empty output", method)
	}
	value, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return value, nil
}

// ParseRaffleEnter decodes a RaffleEnter log.
func (r *Raffle) ParseRaffleEnter(log types.Log) (*RaffleEnter, error) {
	ev := new(RaffleEnter)
	if err := r.contract.UnpackLog(ev, EventRaffleEnter, log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// ParseRequestedRaffleWinner decodes a RequestedRaffleWinner log.
func (r *Raffle) ParseRequestedRaffleWinner(log types.Log) (*RequestedRaffleWinner, error) {
	ev := new(RequestedRaffleWinner)
	if err := r.contract.UnpackLog(ev, EventRequestedRaffleWinner, log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// ParseWinnerPicked decodes a WinnerPicked log.
func (r *Raffle) ParseWinnerPicked(log types.Log) (*WinnerPicked, error) {
	ev := new(WinnerPicked)
	if err := r.contract.UnpackLog(ev, EventWinnerPicked, log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// WatchRaffleEnter subscribes to RaffleEnter logs.
func (r *Raffle) WatchRaffleEnter(ctx context.Context, sink chan<- *RaffleEnter) (event.Subscription, error) {
	return watchEvent(ctx, r, EventRaffleEnter, r.ParseRaffleEnter, sink)
}

// WatchWinnerPicked subscribes to WinnerPicked logs.
func (r *Raffle) WatchWinnerPicked(ctx context.Context, sink chan<- *WinnerPicked) (event.Subscription, error) {
	return watchEvent(ctx, r, EventWinnerPicked, r.ParseWinnerPicked, sink)
}

// watchEvent subscribes to a contract event, falling back to log polling when
// the endpoint does not support notifications (plain HTTP).
func watchEvent[T any](ctx context.Context, r *Raffle, name string, parse func(types.Log) (T, error), sink chan<- T) (event.Subscription, error) {
	logs, sub, err := r.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, name)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		ch := make(chan types.Log, 16)
		query := ethereum.FilterQuery{
			Addresses: []common.Address{r.address},
			Topics:    [][]common.Hash{{r.abi.Events[name].ID}},
		}
		sub, err = chain.PollLogs(ctx, r.backend, query, r.pollInterval, ch)
		logs = ch
	}
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", name, err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case log := <-logs:
				if log.Removed {
					continue
				}
				ev, err := parse(log)
				if err != nil {
					return err
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// FilterOpts bounds a historical log query.
type FilterOpts struct {
	Context context.Context
	Start   uint64
	End     *uint64
}

// FilterWinnerPicked returns past WinnerPicked events.
func (r *Raffle) FilterWinnerPicked(opts FilterOpts) ([]*WinnerPicked, error) {
	logs, err := r.filter(opts, EventWinnerPicked)
	if err != nil {
		return nil, err
	}
	out := make([]*WinnerPicked, 0, len(logs))
	for _, log := range logs {
		ev, err := r.ParseWinnerPicked(log)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *Raffle) filter(opts FilterOpts, name string) ([]types.Log, error) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(opts.Start),
		Addresses: []common.Address{r.address},
		Topics:    [][]common.Hash{{r.abi.Events[name].ID}},
	}
	if opts.End != nil {
		query.ToBlock = new(big.Int).SetUint64(*opts.End)
	}
	logs, err := r.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", name, err)
	}
	return logs, nil
}
