package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}, got)
}

func TestSplitRangeUnevenTail(t *testing.T) {
	got, err := SplitRange(1, 10, 4)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: 1, To: 4}, {From: 5, To: 8}, {From: 9, To: 10}}, got)
	require.Equal(t, uint64(2), got[2].Blocks())
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: 5, To: 5}}, got)
}

func TestSplitRangeNearMaxUint64(t *testing.T) {
	const top = ^uint64(0)
	got, err := SplitRange(top-2, top, 2)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: top - 2, To: top - 1}, {From: top, To: top}}, got)
}

func TestSplitRangeInvalid(t *testing.T) {
	_, err := SplitRange(10, 9, 1)
	require.Error(t, err)
	_, err = SplitRange(1, 10, 0)
	require.Error(t, err)
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWithRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.Equal(t, 3, calls)
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		cancel()
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
}
