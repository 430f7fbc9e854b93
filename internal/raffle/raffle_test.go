package raffle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

func TestABIExposesContractSurface(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	for _, method := range []string{
		"enterRaffle", "checkUpkeep", "performUpkeep", "getEntranceFee", "getInterval",
		"getRaffleState", "getRecentWinner", "getPlayer", "getNumberOfPlayers", "getLatestTimeStamp",
	} {
		require.Contains(t, parsed.Methods, method)
	}
	for _, name := range []string{EventRaffleEnter, EventRequestedRaffleWinner, EventWinnerPicked} {
		require.Contains(t, parsed.Events, name)
	}
	require.True(t, parsed.Methods["enterRaffle"].IsPayable())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "OPEN", StateOpen.String())
	require.Equal(t, "CALCULATING", StateCalculating.String())
	require.Equal(t, "State(7)", State(7).String())
}

func TestDecodeRevertCustomErrorData(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	abiErr := parsed.Errors["Raffle__UpKeepNotNeeded"]
	args, err := abiErr.Inputs.Pack(big.NewInt(0), big.NewInt(0), big.NewInt(1))
	require.NoError(t, err)
	data := append(append([]byte{}, abiErr.ID[:4]...), args...)

	decoded := DecodeRevert(&dataError{msg: "execution reverted", data: hexutil.Encode(data)})
	require.ErrorIs(t, decoded, ErrUpkeepNotNeeded)

	var revert *RevertError
	require.True(t, errors.As(decoded, &revert))
	require.Equal(t, "Raffle__UpKeepNotNeeded", revert.Reason)
	require.Len(t, revert.Args, 3)
	require.Equal(t, "execution reverted: Raffle__UpKeepNotNeeded(0, 0, 1)", revert.Error())
}

func TestDecodeRevertDeployedUpKeepSelector(t *testing.T) {
	selector := crypto.Keccak256([]byte("Raffle__UpKeepNotNeeded(uint256,uint256,uint256)"))[:4]
	uint256Type, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	args, err := abi.Arguments{{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}}.Pack(big.NewInt(0), big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)
	data := append(append([]byte{}, selector...), args...)

	decoded := DecodeRevert(&dataError{msg: "execution reverted", data: hexutil.Encode(data)})
	require.ErrorIs(t, decoded, ErrUpkeepNotNeeded)

	msg := errors.New("VM Exception while processing transaction: reverted with custom error 'Raffle__UpKeepNotNeeded(0, 0, 0)'")
	require.ErrorIs(t, DecodeRevert(msg), ErrUpkeepNotNeeded)
}

func TestDecodeRevertErrorWithoutArgs(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	id := parsed.Errors["Raffle__NotOpen"].ID
	decoded := DecodeRevert(&dataError{msg: "execution reverted", data: hexutil.Encode(id[:4])})
	require.ErrorIs(t, decoded, ErrNotOpen)
	require.NotErrorIs(t, decoded, ErrNotEnoughETHEntered)
}

func TestDecodeRevertReasonString(t *testing.T) {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack("nonexistent request")
	require.NoError(t, err)
	data := append(append([]byte{}, revertErrorSelector...), packed...)

	decoded := DecodeRevert(&dataError{msg: "execution reverted", data: hexutil.Encode(data)})
	require.ErrorIs(t, decoded, ErrNonexistentRequest)
}

func TestDecodeRevertFromMessage(t *testing.T) {
	err := errors.New("VM Exception while processing transaction: reverted with custom error 'Raffle__NotEnoughETHEntered()'")
	require.ErrorIs(t, DecodeRevert(err), ErrNotEnoughETHEntered)

	err = errors.New("VM Exception while processing transaction: reverted with reason string 'nonexistent request'")
	require.ErrorIs(t, DecodeRevert(err), ErrNonexistentRequest)
}

func TestDecodeRevertPassesThroughUnknown(t *testing.T) {
	orig := errors.New("connection refused")
	require.Same(t, orig, DecodeRevert(orig))
	require.NoError(t, DecodeRevert(nil))
}

func TestParseEvents(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	address := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	r, err := NewRaffle(address, nil)
	require.NoError(t, err)

	player := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	enter, err := r.ParseRaffleEnter(types.Log{
		Address: address,
		Topics:  []common.Hash{parsed.Events[EventRaffleEnter].ID, common.BytesToHash(player.Bytes())},
	})
	require.NoError(t, err)
	require.Equal(t, player, enter.Player)

	requested, err := r.ParseRequestedRaffleWinner(types.Log{
		Address: address,
		Topics:  []common.Hash{parsed.Events[EventRequestedRaffleWinner].ID, common.BigToHash(big.NewInt(42))},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), requested.RequestId.Int64())

	winner, err := r.ParseWinnerPicked(types.Log{
		Address: address,
		Topics:  []common.Hash{parsed.Events[EventWinnerPicked].ID, common.BytesToHash(player.Bytes())},
	})
	require.NoError(t, err)
	require.Equal(t, player, winner.Winner)

	_, err = r.ParseWinnerPicked(types.Log{
		Address: address,
		Topics:  []common.Hash{parsed.Events[EventRaffleEnter].ID, common.BytesToHash(player.Bytes())},
	})
	require.Error(t, err)
}
