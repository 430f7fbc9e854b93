// Package lotterytest provides an in-memory stand-in for a development
// network hosting a Raffle and its VRF coordinator mock, for tests of code
// that drives the raffle from the outside.
package lotterytest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"raffleHarness/internal/raffle"
)

var (
	RaffleAddress      = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	CoordinatorAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

const txGas = 21000

type state struct {
	clock        uint64
	blockNumber  uint64
	lastTS       uint64
	raffleState  raffle.State
	players      []common.Address
	pot          *big.Int
	recentWinner common.Address
	nextRequest  int64
	pending      map[int64]bool
	balances     map[common.Address]*big.Int
}

func (s *state) clone() *state {
	out := *s
	out.players = append([]common.Address(nil), s.players...)
	out.pot = new(big.Int).Set(s.pot)
	out.pending = make(map[int64]bool, len(s.pending))
	for k, v := range s.pending {
		out.pending[k] = v
	}
	out.balances = make(map[common.Address]*big.Int, len(s.balances))
	for k, v := range s.balances {
		out.balances[k] = new(big.Int).Set(v)
	}
	return &out
}

// Network simulates the raffle, its coordinator mock and the node.
type Network struct {
	Fee             *big.Int
	IntervalSeconds uint64
	GasPrice        *big.Int
	// Pick chooses the winner index from the random word; defaults to word % n.
	Pick func(word *big.Int, n int) int
	// DropWinnerEvent suppresses WinnerPicked emission, to exercise timeouts.
	DropWinnerEvent bool

	binding *raffle.Raffle

	mu        sync.Mutex
	st        *state
	nonce     uint64
	snapSeq   int
	reads     int
	receipts  map[common.Hash]*types.Receipt
	snapshots map[string]*state
	winners   event.Feed
	enters    event.Feed
}

// NewNetwork deploys a fresh raffle with fee and interval seconds.
func NewNetwork(fee *big.Int, interval uint64) *Network {
	binding, err := raffle.NewRaffle(RaffleAddress, nil)
	if err != nil {
		panic(err)
	}
	return &Network{
		Fee:             fee,
		IntervalSeconds: interval,
		GasPrice:        big.NewInt(0),
		binding:         binding,
		st: &state{
			clock:       1_700_000_000,
			lastTS:      1_700_000_000,
			pot:         new(big.Int),
			nextRequest: 1,
			pending:     make(map[int64]bool),
			balances:    make(map[common.Address]*big.Int),
		},
		receipts:  make(map[common.Hash]*types.Receipt),
		snapshots: make(map[string]*state),
	}
}

// Fund credits an account.
func (n *Network) Fund(account common.Address, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balance(account).Add(n.balance(account), amount)
}

// Account returns transact opts for a fresh funded account derived from seed.
func (n *Network) Account(seed int64, funds *big.Int) *bind.TransactOpts {
	from := common.BigToAddress(big.NewInt(0x1000 + seed))
	n.Fund(from, funds)
	return &bind.TransactOpts{From: from}
}

func (n *Network) balance(account common.Address) *big.Int {
	b, ok := n.st.balances[account]
	if !ok {
		b = new(big.Int)
		n.st.balances[account] = b
	}
	return b
}

// mine records a transaction from sender and returns it with its receipt.
func (n *Network) mine(from common.Address, logs []*types.Log) (*types.Transaction, error) {
	cost := new(big.Int).Mul(n.GasPrice, big.NewInt(txGas))
	if n.balance(from).Cmp(cost) < 0 {
		return nil, fmt.Errorf("insufficient funds for gas")
	}
	n.balance(from).Sub(n.balance(from), cost)

	n.nonce++
	n.st.clock++
	n.st.blockNumber++
	tx := types.NewTx(&types.LegacyTx{Nonce: n.nonce, GasPrice: n.GasPrice, Gas: txGas})
	receipt := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(n.st.blockNumber),
		GasUsed:           txGas,
		EffectiveGasPrice: new(big.Int).Set(n.GasPrice),
	}
	for i, log := range logs {
		log.TxHash = tx.Hash()
		log.BlockNumber = n.st.blockNumber
		log.Index = uint(i)
		receipt.Logs = append(receipt.Logs, log)
	}
	n.receipts[tx.Hash()] = receipt
	return tx, nil
}

func revert(message string) error {
	return raffle.DecodeRevert(errors.New("VM Exception while processing transaction: " + message))
}

func (n *Network) upkeepNeeded() bool {
	timePassed := n.st.clock-n.st.lastTS > n.IntervalSeconds
	return n.st.raffleState == raffle.StateOpen && timePassed && len(n.st.players) > 0 && n.st.pot.Sign() > 0
}

// Address returns the raffle address.
func (n *Network) Address() common.Address { return RaffleAddress }

func (n *Network) EnterRaffle(opts *bind.TransactOpts, value *big.Int) (*types.Transaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if value == nil || value.Cmp(n.Fee) < 0 {
		return nil, revert("reverted with custom error 'Raffle__NotEnoughETHEntered()'")
	}
	if n.st.raffleState != raffle.StateOpen {
		return nil, revert("reverted with custom error 'Raffle__NotOpen()'")
	}
	required := new(big.Int).Add(value, new(big.Int).Mul(n.GasPrice, big.NewInt(txGas)))
	if n.balance(opts.From).Cmp(required) < 0 {
		return nil, fmt.Errorf("insufficient funds for gas * price + value")
	}
	n.balance(opts.From).Sub(n.balance(opts.From), value)
	n.st.pot.Add(n.st.pot, value)
	n.st.players = append(n.st.players, opts.From)

	abiDef, _ := raffle.ABI()
	log := &types.Log{
		Address: RaffleAddress,
		Topics:  []common.Hash{abiDef.Events[raffle.EventRaffleEnter].ID, common.BytesToHash(opts.From.Bytes())},
	}
	tx, err := n.mine(opts.From, []*types.Log{log})
	if err != nil {
		return nil, err
	}
	n.enters.Send(&raffle.RaffleEnter{Player: opts.From, Raw: *log})
	return tx, nil
}

func (n *Network) CheckUpkeep(context.Context, []byte) (raffle.UpkeepStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return raffle.UpkeepStatus{UpkeepNeeded: n.upkeepNeeded(), PerformData: []byte{}}, nil
}

func (n *Network) PerformUpkeep(opts *bind.TransactOpts, _ []byte) (*types.Transaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.upkeepNeeded() {
		return nil, revert(fmt.Sprintf("reverted with custom error 'Raffle__UpKeepNotNeeded(%s, %d, %d)'",
			n.st.pot, len(n.st.players), n.st.raffleState))
	}
	n.st.raffleState = raffle.StateCalculating
	id := n.st.nextRequest
	n.st.nextRequest++
	n.st.pending[id] = true

	abiDef, _ := raffle.ABI()
	logs := []*types.Log{
		{Address: CoordinatorAddress, Topics: []common.Hash{common.HexToHash("0x63373d1c"), common.BigToHash(big.NewInt(id))}},
		{Address: RaffleAddress, Topics: []common.Hash{abiDef.Events[raffle.EventRequestedRaffleWinner].ID, common.BigToHash(big.NewInt(id))}},
	}
	return n.mine(opts.From, logs)
}

// FulfillRandomWords plays the coordinator mock.
func (n *Network) FulfillRandomWords(opts *bind.TransactOpts, requestID *big.Int, consumer common.Address) (*types.Transaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if requestID == nil || !requestID.IsInt64() || !n.st.pending[requestID.Int64()] {
		return nil, revert("reverted with reason string 'nonexistent request'")
	}
	if consumer != RaffleAddress {
		return nil, fmt.Errorf("unknown consumer %s", consumer.Hex())
	}
	delete(n.st.pending, requestID.Int64())

	word := new(big.Int).Add(requestID, big.NewInt(77))
	idx := int(new(big.Int).Mod(word, big.NewInt(int64(len(n.st.players)))).Int64())
	if n.Pick != nil {
		idx = n.Pick(word, len(n.st.players))
	}
	winner := n.st.players[idx]

	abiDef, _ := raffle.ABI()
	winnerLog := &types.Log{
		Address: RaffleAddress,
		Topics:  []common.Hash{abiDef.Events[raffle.EventWinnerPicked].ID, common.BytesToHash(winner.Bytes())},
	}
	tx, err := n.mine(opts.From, []*types.Log{winnerLog})
	if err != nil {
		return nil, err
	}

	n.balance(winner).Add(n.balance(winner), n.st.pot)
	n.st.pot = new(big.Int)
	n.st.players = nil
	n.st.raffleState = raffle.StateOpen
	n.st.lastTS = n.st.clock
	n.st.recentWinner = winner

	if !n.DropWinnerEvent {
		n.winners.Send(&raffle.WinnerPicked{Winner: winner, Raw: *winnerLog})
	}
	return tx, nil
}

func (n *Network) EntranceFee(context.Context) (*big.Int, error) {
	return new(big.Int).Set(n.Fee), nil
}

func (n *Network) Interval(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(n.IntervalSeconds), nil
}

func (n *Network) RaffleState(context.Context) (raffle.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.st.raffleState, nil
}

func (n *Network) NumberOfPlayers(context.Context) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return big.NewInt(int64(len(n.st.players))), nil
}

func (n *Network) LatestTimeStamp(context.Context) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).SetUint64(n.st.lastTS), nil
}

func (n *Network) RecentWinner(context.Context) (common.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.st.recentWinner, nil
}

func (n *Network) Player(_ context.Context, index *big.Int) (common.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !index.IsInt64() || index.Int64() < 0 || index.Int64() >= int64(len(n.st.players)) {
		return common.Address{}, errors.New("execution reverted: panic code 0x32 (Array accessed at an out-of-bounds or negative index)")
	}
	return n.st.players[index.Int64()], nil
}

func (n *Network) ParseRequestedRaffleWinner(log types.Log) (*raffle.RequestedRaffleWinner, error) {
	return n.binding.ParseRequestedRaffleWinner(log)
}

func (n *Network) WatchWinnerPicked(_ context.Context, sink chan<- *raffle.WinnerPicked) (event.Subscription, error) {
	return n.winners.Subscribe(sink), nil
}

func (n *Network) WatchRaffleEnter(_ context.Context, sink chan<- *raffle.RaffleEnter) (event.Subscription, error) {
	return n.enters.Subscribe(sink), nil
}

// WaitMined returns the receipt of a transaction produced by the network.
func (n *Network) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	receipt, ok := n.receipts[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", tx.Hash().Hex())
	}
	return receipt, nil
}

func (n *Network) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads++
	return new(big.Int).Set(n.balance(account)), nil
}

// BalanceReads reports how many balance queries were served.
func (n *Network) BalanceReads() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reads
}

func (n *Network) IncreaseTime(_ context.Context, seconds uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.st.clock += seconds
	return nil
}

func (n *Network) Mine(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.st.clock++
	n.st.blockNumber++
	return nil
}

// LatestBlockTimestamp returns the head block time.
func (n *Network) LatestBlockTimestamp(context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.st.clock, nil
}

func (n *Network) Snapshot(context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapSeq++
	id := fmt.Sprintf("0x%x", n.snapSeq)
	n.snapshots[id] = n.st.clone()
	return id, nil
}

func (n *Network) Revert(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	snap, ok := n.snapshots[id]
	if !ok {
		return fmt.Errorf("evm_revert: snapshot %s not found", id)
	}
	n.st = snap.clone()
	delete(n.snapshots, id)
	return nil
}
