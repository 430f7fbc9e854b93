package raffle

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// RaffleABIJSON is the interface descriptor of the Raffle contract.
const RaffleABIJSON = `[
  {
    "type": "constructor",
    "stateMutability": "nonpayable",
    "inputs": [
      {"internalType": "address", "name": "vrfCoordinatorV2", "type": "address"},
      {"internalType": "uint256", "name": "entranceFee", "type": "uint256"},
      {"internalType": "bytes32", "name": "gasLane", "type": "bytes32"},
      {"internalType": "uint64", "name": "subscriptionId", "type": "uint64"},
      {"internalType": "uint32", "name": "callbackGasLimit", "type": "uint32"},
      {"internalType": "uint256", "name": "interval", "type": "uint256"}
    ]
  },
  {"type": "error", "name": "OnlyCoordinatorCanFulfill", "inputs": [
    {"internalType": "address", "name": "have", "type": "address"},
    {"internalType": "address", "name": "want", "type": "address"}
  ]},
  {"type": "error", "name": "Raffle__NotEnoughETHEntered", "inputs": []},
  {"type": "error", "name": "Raffle__NotOpen", "inputs": []},
  {"type": "error", "name": "Raffle__TransferFailed", "inputs": []},
  {"type": "error", "name": "Raffle__UpKeepNotNeeded", "inputs": [
    {"internalType": "uint256", "name": "currentBalance", "type": "uint256"},
    {"internalType": "uint256", "name": "numPlayers", "type": "uint256"},
    {"internalType": "uint256", "name": "raffleState", "type": "uint256"}
  ]},
  {
    "type": "event",
    "name": "RaffleEnter",
    "anonymous": false,
    "inputs": [{"indexed": true, "internalType": "address", "name": "player", "type": "address"}]
  },
  {
    "type": "event",
    "name": "RequestedRaffleWinner",
    "anonymous": false,
    "inputs": [{"indexed": true, "internalType": "uint256", "name": "requestId", "type": "uint256"}]
  },
  {
    "type": "event",
    "name": "WinnerPicked",
    "anonymous": false,
    "inputs": [{"indexed": true, "internalType": "address", "name": "winner", "type": "address"}]
  },
  {
    "type": "function",
    "name": "checkUpkeep",
    "stateMutability": "nonpayable",
    "inputs": [{"internalType": "bytes", "name": "", "type": "bytes"}],
    "outputs": [
      {"internalType": "bool", "name": "upkeepNeeded", "type": "bool"},
      {"internalType": "bytes", "name": "", "type": "bytes"}
    ]
  },
  {
    "type": "function",
    "name": "enterRaffle",
    "stateMutability": "payable",
    "inputs": [],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getEntranceFee",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getInterval",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getLatestTimeStamp",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getNumberOfPlayers",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getPlayer",
    "stateMutability": "view",
    "inputs": [{"internalType": "uint256", "name": "index", "type": "uint256"}],
    "outputs": [{"internalType": "address", "name": "", "type": "address"}]
  },
  {
    "type": "function",
    "name": "getRaffleState",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "enum Raffle.RaffleState", "name": "", "type": "uint8"}]
  },
  {
    "type": "function",
    "name": "getRecentWinner",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"internalType": "address", "name": "", "type": "address"}]
  },
  {
    "type": "function",
    "name": "performUpkeep",
    "stateMutability": "nonpayable",
    "inputs": [{"internalType": "bytes", "name": "", "type": "bytes"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "rawFulfillRandomWords",
    "stateMutability": "nonpayable",
    "inputs": [
      {"internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"internalType": "uint256[]", "name": "randomWords", "type": "uint256[]"}
    ],
    "outputs": []
  }
]`

var (
	raffleABI     abi.ABI
	raffleABIOnce sync.Once
	raffleABIErr  error
)

// ABI returns the parsed Raffle ABI.
func ABI() (abi.ABI, error) {
	raffleABIOnce.Do(func() {
		raffleABI, raffleABIErr = abi.JSON(strings.NewReader(RaffleABIJSON))
	})
	return raffleABI, raffleABIErr
}
