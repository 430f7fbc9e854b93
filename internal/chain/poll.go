package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// DefaultPollInterval matches the polling cadence of JSON-RPC providers over HTTP.
const DefaultPollInterval = 4 * time.Second

// LogSource is the subset of an RPC client needed to poll logs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// PollLogs emulates eth_subscribe("logs") on endpoints without notification
// support. Polling starts at the block after the current head unless the
// query carries a FromBlock.
func PollLogs(ctx context.Context, src LogSource, query ethereum.FilterQuery, interval time.Duration, sink chan<- types.Log) (event.Subscription, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var next uint64
	if query.FromBlock != nil {
		next = query.FromBlock.Uint64()
	} else {
		head, err := src.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		next = head + 1
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			head, err := src.BlockNumber(ctx)
			if err != nil {
				return err
			}
			if head < next {
				continue
			}

			q := query
			q.FromBlock = new(big.Int).SetUint64(next)
			q.ToBlock = new(big.Int).SetUint64(head)
			logs, err := src.FilterLogs(ctx, q)
			if err != nil {
				return err
			}
			for _, log := range logs {
				select {
				case sink <- log:
				case <-quit:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			next = head + 1
		}
	}), nil
}
