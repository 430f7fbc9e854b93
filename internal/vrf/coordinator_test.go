package vrf

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestParseRandomWordsRequested(t *testing.T) {
	parsed, err := CoordinatorMockABI()
	require.NoError(t, err)

	coordinator := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	consumer := common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	mock, err := NewCoordinatorMock(coordinator, nil)
	require.NoError(t, err)

	ev := parsed.Events["RandomWordsRequested"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(99), uint16(3), uint32(500000), uint32(1))
	require.NoError(t, err)

	keyHash := common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc")
	got, err := mock.ParseRandomWordsRequested(types.Log{
		Address: coordinator,
		Topics: []common.Hash{
			ev.ID,
			keyHash,
			common.BigToHash(big.NewInt(1)),
			common.BytesToHash(consumer.Bytes()),
		},
		Data: data,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), got.RequestId.Int64())
	require.Equal(t, uint64(1), got.SubId)
	require.Equal(t, consumer, got.Sender)
	require.Equal(t, uint32(1), got.NumWords)
	require.Equal(t, [32]byte(keyHash), got.KeyHash)
}

func TestFulfilledRequest(t *testing.T) {
	parsed, err := CoordinatorMockABI()
	require.NoError(t, err)

	coordinator := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	mock, err := NewCoordinatorMock(coordinator, nil)
	require.NoError(t, err)

	ev := parsed.Events["RandomWordsFulfilled"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(7), big.NewInt(100000), true)
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(3))}, Data: data},
		{Address: coordinator, Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(5))}, Data: data},
	}}

	id, ok := mock.FulfilledRequest(receipt)
	require.True(t, ok)
	require.Equal(t, int64(5), id.Int64())

	_, ok = mock.FulfilledRequest(&types.Receipt{})
	require.False(t, ok)
}
