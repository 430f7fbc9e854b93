package raffle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event names emitted by the raffle.
const (
	EventRaffleEnter           = "RaffleEnter"
	EventRequestedRaffleWinner = "RequestedRaffleWinner"
	EventWinnerPicked          = "WinnerPicked"
)

// RaffleEnter is emitted when a player pays the entrance fee.
type RaffleEnter struct {
	Player common.Address
	Raw    types.Log
}

// RequestedRaffleWinner is emitted by performUpkeep once randomness is requested.
type RequestedRaffleWinner struct {
	RequestId *big.Int
	Raw       types.Log
}

// WinnerPicked is emitted by the randomness callback after the payout.
type WinnerPicked struct {
	Winner common.Address
	Raw    types.Log
}

// UpkeepStatus is the result of checkUpkeep.
type UpkeepStatus struct {
	UpkeepNeeded bool
	PerformData  []byte
}
