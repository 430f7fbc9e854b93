package vrf

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"raffleHarness/internal/raffle"
)

const coordinatorMockABIJSON = `[
  {
    "type": "function",
    "name": "fulfillRandomWords",
    "stateMutability": "nonpayable",
    "inputs": [
      {"internalType": "uint256", "name": "_requestId", "type": "uint256"},
      {"internalType": "address", "name": "_consumer", "type": "address"}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "RandomWordsRequested",
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "keyHash", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "preSeed", "type": "uint256"},
      {"indexed": true, "internalType": "uint64", "name": "subId", "type": "uint64"},
      {"indexed": false, "internalType": "uint16", "name": "minimumRequestConfirmations", "type": "uint16"},
      {"indexed": false, "internalType": "uint32", "name": "callbackGasLimit", "type": "uint32"},
      {"indexed": false, "internalType": "uint32", "name": "numWords", "type": "uint32"},
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"}
    ]
  },
  {
    "type": "event",
    "name": "RandomWordsFulfilled",
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "outputSeed", "type": "uint256"},
      {"indexed": false, "internalType": "uint96", "name": "payment", "type": "uint96"},
      {"indexed": false, "internalType": "bool", "name": "success", "type": "bool"}
    ]
  }
]`

var (
	coordinatorABI     abi.ABI
	coordinatorABIOnce sync.Once
	coordinatorABIErr  error
)

// CoordinatorMockABI returns the parsed VRFCoordinatorV2Mock ABI subset.
func CoordinatorMockABI() (abi.ABI, error) {
	coordinatorABIOnce.Do(func() {
		coordinatorABI, coordinatorABIErr = abi.JSON(strings.NewReader(coordinatorMockABIJSON))
	})
	return coordinatorABI, coordinatorABIErr
}

// RandomWordsRequested is emitted by the coordinator when a consumer asks for randomness.
type RandomWordsRequested struct {
	KeyHash                     [32]byte
	RequestId                   *big.Int
	PreSeed                     *big.Int
	SubId                       uint64
	MinimumRequestConfirmations uint16
	CallbackGasLimit            uint32
	NumWords                    uint32
	Sender                      common.Address
	Raw                         types.Log
}

// RandomWordsFulfilled is emitted once the consumer callback ran.
type RandomWordsFulfilled struct {
	RequestId  *big.Int
	OutputSeed *big.Int
	Payment    *big.Int
	Success    bool
	Raw        types.Log
}

// CoordinatorMock binds the VRFCoordinatorV2Mock used on development networks.
// It stands in for the oracle network by fulfilling pending requests on demand.
type CoordinatorMock struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewCoordinatorMock binds the coordinator mock at address.
func NewCoordinatorMock(address common.Address, backend bind.ContractBackend) (*CoordinatorMock, error) {
	parsed, err := CoordinatorMockABI()
	if err != nil {
		return nil, fmt.Errorf("parse coordinator abi: %w", err)
	}
	return &CoordinatorMock{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the coordinator address.
func (c *CoordinatorMock) Address() common.Address {
	return c.address
}

// FulfillRandomWords delivers randomness for requestID to consumer. Unknown
// request ids revert with raffle.ErrNonexistentRequest.
func (c *CoordinatorMock) FulfillRandomWords(opts *bind.TransactOpts, requestID *big.Int, consumer common.Address) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, "fulfillRandomWords", requestID, consumer)
	if err != nil {
		return nil, raffle.DecodeRevert(err)
	}
	return tx, nil
}

// ParseRandomWordsRequested decodes a RandomWordsRequested log.
func (c *CoordinatorMock) ParseRandomWordsRequested(log types.Log) (*RandomWordsRequested, error) {
	ev := new(RandomWordsRequested)
	if err := c.contract.UnpackLog(ev, "RandomWordsRequested", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// ParseRandomWordsFulfilled decodes a RandomWordsFulfilled log.
func (c *CoordinatorMock) ParseRandomWordsFulfilled(log types.Log) (*RandomWordsFulfilled, error) {
	ev := new(RandomWordsFulfilled)
	if err := c.contract.UnpackLog(ev, "RandomWordsFulfilled", log); err != nil {
		return nil, err
	}
	ev.Raw = log
	return ev, nil
}

// FulfilledRequest returns the request id fulfilled in receipt, if any.
func (c *CoordinatorMock) FulfilledRequest(receipt *types.Receipt) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, log := range receipt.Logs {
		if log.Address != c.address {
			continue
		}
		ev, err := c.ParseRandomWordsFulfilled(*log)
		if err != nil {
			continue
		}
		return ev.RequestId, true
	}
	return nil, false
}
