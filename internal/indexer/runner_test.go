package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"raffleHarness/internal/model"
	"raffleHarness/internal/raffle"
)

var (
	raffleAddr = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	player     = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

type fakeSource struct {
	head        uint64
	logs        []types.Log
	failFilters int
	filterCalls [][2]uint64
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.filterCalls = append(f.filterCalls, [2]uint64{from, to})
	if f.failFilters > 0 {
		f.failFilters--
		return nil, errors.New("upstream busy")
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

type memoryStorage struct {
	records []model.EventRecord
}

func (m *memoryStorage) PutEventBatch(_ context.Context, records []model.EventRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func eventLog(t *testing.T, name string, block uint64, index uint, topic1 common.Hash) types.Log {
	t.Helper()
	parsed, err := raffle.ABI()
	require.NoError(t, err)
	return types.Log{
		Address:     raffleAddr,
		Topics:      []common.Hash{parsed.Events[name].ID, topic1},
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       index,
	}
}

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	binding, err := raffle.NewRaffle(raffleAddr, nil)
	require.NoError(t, err)
	decoder, err := NewDecoder(binding)
	require.NoError(t, err)
	return decoder
}

func TestRunnerIndexesRaffleEvents(t *testing.T) {
	enter := eventLog(t, raffle.EventRaffleEnter, 3, 0, common.BytesToHash(player.Bytes()))
	src := &fakeSource{
		head: 10,
		logs: []types.Log{
			enter,
			enter,
			eventLog(t, raffle.EventRequestedRaffleWinner, 6, 1, common.BigToHash(big.NewInt(7))),
			eventLog(t, raffle.EventWinnerPicked, 8, 0, common.BytesToHash(player.Bytes())),
			{Address: raffleAddr, Topics: []common.Hash{common.HexToHash("0xdead")}, BlockNumber: 9},
		},
	}
	sink := &memoryStorage{}
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "state", "checkpoint.json"), true)

	runner := NewRunner(RunConfig{FromBlock: 1, Addresses: []common.Address{raffleAddr}, BatchSize: 4}, src, newDecoder(t), sink, cp, nil)
	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, stats.Batches)
	require.Equal(t, 3, stats.Records)
	require.Equal(t, 1, stats.Duplicates)
	require.Len(t, stats.DecodeErrors, 1)

	require.Len(t, sink.records, 3)
	require.Equal(t, player.Hex(), sink.records[0].Player)
	require.Equal(t, uint64(1_700_000_036), sink.records[0].Timestamp)
	require.Equal(t, "7", sink.records[1].RequestID)
	require.Equal(t, raffle.EventWinnerPicked, sink.records[2].EventName)
	require.Equal(t, player.Hex(), sink.records[2].Winner)

	last, ok, err := cp.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), last)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{head: 20}
	cp := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoint.json"), true)
	require.NoError(t, cp.Save(ctx, 15))

	runner := NewRunner(RunConfig{FromBlock: 1, Addresses: []common.Address{raffleAddr}, BatchSize: 100}, src, newDecoder(t), &memoryStorage{}, cp, nil)
	stats, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(16), stats.From)
	require.Equal(t, [][2]uint64{{16, 20}}, src.filterCalls)
}

func TestRunnerRetriesFilter(t *testing.T) {
	src := &fakeSource{head: 5, failFilters: 2}
	runner := NewRunner(RunConfig{
		Addresses:    []common.Address{raffleAddr},
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, src, newDecoder(t), &memoryStorage{}, nil, nil)

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, src.filterCalls, 3)
}

func TestRunnerGivesUpAfterRetries(t *testing.T) {
	src := &fakeSource{head: 5, failFilters: 5}
	runner := NewRunner(RunConfig{
		Addresses:    []common.Address{raffleAddr},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, src, newDecoder(t), &memoryStorage{}, nil, nil)

	_, err := runner.Run(context.Background())
	require.ErrorContains(t, err, "upstream busy")
}

func TestRunnerValidatesConfig(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 10}, &fakeSource{}, newDecoder(t), &memoryStorage{}, nil, nil)
	_, err := runner.Run(context.Background())
	require.ErrorContains(t, err, "address")
}

type memoryState map[string]uint64

func (m memoryState) LoadState(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memoryState) SaveState(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestDBCheckpoint(t *testing.T) {
	ctx := context.Background()
	state := memoryState{}
	cp := DBCheckpoint{Store: state, Name: "raffle-31337"}

	_, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cp.Save(ctx, 42))
	last, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), last)
}

func TestDisabledCheckpointStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	cp := NewCheckpointStore(path, false)
	require.NoError(t, cp.Save(ctx, 9))
	_, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" " + raffleAddr.Hex(), ""})
	require.NoError(t, err)
	require.Equal(t, []common.Address{raffleAddr}, addrs)

	_, err = ParseAddresses([]string{"0x123"})
	require.Error(t, err)
}
