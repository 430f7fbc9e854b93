package upkeep

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"raffleHarness/internal/raffle"
)

// RequestIDLogIndex is the receipt position of RequestedRaffleWinner. The
// coordinator's RandomWordsRequested is emitted first, inside requestRandomWords.
const RequestIDLogIndex = 1

// Contract is the raffle surface used to run upkeep.
type Contract interface {
	Address() common.Address
	CheckUpkeep(ctx context.Context, checkData []byte) (raffle.UpkeepStatus, error)
	PerformUpkeep(opts *bind.TransactOpts, performData []byte) (*types.Transaction, error)
	ParseRequestedRaffleWinner(log types.Log) (*raffle.RequestedRaffleWinner, error)
}

// Miner waits for transaction inclusion.
type Miner interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Trigger performs upkeep on behalf of the automation network.
type Trigger struct {
	contract Contract
	miner    Miner
	logger   *zap.Logger
}

// NewTrigger builds a Trigger.
func NewTrigger(contract Contract, miner Miner, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{contract: contract, miner: miner, logger: logger}
}

// Check reports whether the raffle currently needs upkeep.
func (t *Trigger) Check(ctx context.Context) (bool, error) {
	status, err := t.contract.CheckUpkeep(ctx, []byte{})
	if err != nil {
		return false, fmt.Errorf("check upkeep: %w", err)
	}
	return status.UpkeepNeeded, nil
}

// Perform calls performUpkeep, waits for one confirmation and returns the
// randomness request id. Unmet preconditions surface as raffle.ErrUpkeepNotNeeded.
func (t *Trigger) Perform(ctx context.Context, opts *bind.TransactOpts) (*big.Int, *types.Receipt, error) {
	call := *opts
	call.Context = ctx
	tx, err := t.contract.PerformUpkeep(&call, []byte{})
	if err != nil {
		return nil, nil, fmt.Errorf("perform upkeep: %w", err)
	}

	receipt, err := t.miner.WaitMined(ctx, tx)
	if err != nil {
		return nil, receipt, fmt.Errorf("perform upkeep: %w", err)
	}

	requestID, err := RequestIDFromReceipt(t.contract, receipt)
	if err != nil {
		return nil, receipt, err
	}

	t.logger.Info("upkeep performed",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Stringer("block_number", receipt.BlockNumber),
		zap.String("request_id", requestID.String()),
	)
	return requestID, receipt, nil
}

// RequestIDFromReceipt extracts the correlation id from the performUpkeep receipt.
func RequestIDFromReceipt(contract Contract, receipt *types.Receipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("request id: nil receipt")
	}
	if len(receipt.Logs) <= RequestIDLogIndex {
		return nil, fmt.Errorf("request id: receipt has %d logs, want at least %d", len(receipt.Logs), RequestIDLogIndex+1)
	}

	log := receipt.Logs[RequestIDLogIndex]
	if log.Address != contract.Address() {
		return nil, fmt.Errorf("request id: log %d emitted by %s, want %s", RequestIDLogIndex, log.Address.Hex(), contract.Address().Hex())
	}
	ev, err := contract.ParseRequestedRaffleWinner(*log)
	if err != nil {
		return nil, fmt.Errorf("request id: decode log %d: %w", RequestIDLogIndex, err)
	}
	return ev.RequestId, nil
}
