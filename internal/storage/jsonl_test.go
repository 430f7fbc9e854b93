package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"raffleHarness/internal/model"
)

func TestJsonlStorageAppendsBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := NewJsonlStorage(path)
	ctx := context.Background()

	require.NoError(t, sink.PutEventBatch(ctx, []model.EventRecord{
		{BlockNumber: 1, EventName: "RaffleEnter", Player: "0xaa"},
	}))
	require.NoError(t, sink.PutEventBatch(ctx, nil))
	require.NoError(t, sink.PutEventBatch(ctx, []model.EventRecord{
		{BlockNumber: 2, EventName: "RequestedRaffleWinner", RequestID: "1"},
		{BlockNumber: 3, EventName: "WinnerPicked", Winner: "0xaa"},
	}))

	records, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "0xaa", records[0].Player)
	require.Equal(t, "1", records[1].RequestID)
	require.Equal(t, "WinnerPicked", records[2].EventName)
}

func TestReadEventsReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"block_number\":1}\nnot-json\n"), 0o644))

	_, err := ReadEvents(path)
	require.ErrorContains(t, err, "line 2")
}
