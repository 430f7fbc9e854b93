package storage

import (
	"context"

	"raffleHarness/internal/model"
)

// Storage defines a sink for raffle event records.
type Storage interface {
	PutEventBatch(ctx context.Context, records []model.EventRecord) error
}
