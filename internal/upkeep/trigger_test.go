package upkeep

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"raffleHarness/internal/raffle"
)

var (
	raffleAddress      = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	coordinatorAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fakeContract struct {
	*raffle.Raffle
	needed     bool
	performErr error
}

func (f *fakeContract) CheckUpkeep(context.Context, []byte) (raffle.UpkeepStatus, error) {
	return raffle.UpkeepStatus{UpkeepNeeded: f.needed}, nil
}

func (f *fakeContract) PerformUpkeep(*bind.TransactOpts, []byte) (*types.Transaction, error) {
	if f.performErr != nil {
		return nil, f.performErr
	}
	return types.NewTx(&types.LegacyTx{Nonce: 1}), nil
}

type fakeMiner struct {
	receipt *types.Receipt
}

func (m *fakeMiner) WaitMined(context.Context, *types.Transaction) (*types.Receipt, error) {
	return m.receipt, nil
}

func newFakeContract(t *testing.T) *fakeContract {
	t.Helper()
	bound, err := raffle.NewRaffle(raffleAddress, nil)
	require.NoError(t, err)
	return &fakeContract{Raffle: bound, needed: true}
}

func requestedLog(t *testing.T, id int64) *types.Log {
	t.Helper()
	parsed, err := raffle.ABI()
	require.NoError(t, err)
	return &types.Log{
		Address: raffleAddress,
		Topics:  []common.Hash{parsed.Events[raffle.EventRequestedRaffleWinner].ID, common.BigToHash(big.NewInt(id))},
	}
}

func coordinatorLog() *types.Log {
	return &types.Log{Address: coordinatorAddress, Topics: []common.Hash{common.HexToHash("0x01")}}
}

func TestPerformReturnsRequestID(t *testing.T) {
	contract := newFakeContract(t)
	miner := &fakeMiner{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(12),
		Logs:        []*types.Log{coordinatorLog(), requestedLog(t, 1)},
	}}

	trigger := NewTrigger(contract, miner, zap.NewNop())
	id, receipt, err := trigger.Perform(context.Background(), &bind.TransactOpts{})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, int64(1), id.Int64())
}

func TestPerformSurfacesUpkeepNotNeeded(t *testing.T) {
	contract := newFakeContract(t)
	contract.performErr = raffle.DecodeRevert(errors.New("reverted with custom error 'Raffle__UpKeepNotNeeded(0, 0, 0)'"))

	trigger := NewTrigger(contract, &fakeMiner{}, nil)
	_, _, err := trigger.Perform(context.Background(), &bind.TransactOpts{})
	require.ErrorIs(t, err, raffle.ErrUpkeepNotNeeded)
}

func TestCheck(t *testing.T) {
	contract := newFakeContract(t)
	trigger := NewTrigger(contract, &fakeMiner{}, nil)

	needed, err := trigger.Check(context.Background())
	require.NoError(t, err)
	require.True(t, needed)

	contract.needed = false
	needed, err = trigger.Check(context.Background())
	require.NoError(t, err)
	require.False(t, needed)
}

func TestRequestIDFromReceiptRejectsUnexpectedLayout(t *testing.T) {
	contract := newFakeContract(t)

	_, err := RequestIDFromReceipt(contract, nil)
	require.Error(t, err)

	_, err = RequestIDFromReceipt(contract, &types.Receipt{Logs: []*types.Log{requestedLog(t, 1)}})
	require.ErrorContains(t, err, "want at least 2")

	// Request log at index 0 means the coordinator emitted nothing first.
	_, err = RequestIDFromReceipt(contract, &types.Receipt{Logs: []*types.Log{requestedLog(t, 1), coordinatorLog()}})
	require.ErrorContains(t, err, "emitted by")

	foreign := requestedLog(t, 1)
	foreign.Topics[0] = common.HexToHash("0x02")
	_, err = RequestIDFromReceipt(contract, &types.Receipt{Logs: []*types.Log{coordinatorLog(), foreign}})
	require.ErrorContains(t, err, "decode log 1")
}
