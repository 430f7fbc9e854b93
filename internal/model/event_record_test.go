package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventRecordJSONKeepsRequestIDAsString(t *testing.T) {
	record := EventRecord{
		ChainID:     31337,
		BlockNumber: 12,
		TxHash:      "0xdef456",
		LogIndex:    1,
		EventName:   "RequestedRaffleWinner",
		RequestID:   "115792089237316195423570985008687907853269984665640564039457584007913129639935",
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.IsType(t, "", decoded["request_id"])
	require.NotContains(t, decoded, "player")
	require.NotContains(t, decoded, "winner")
}

func TestEventRecordKey(t *testing.T) {
	record := EventRecord{BlockNumber: 7, TxHash: "0xabc", LogIndex: 3}
	require.Equal(t, "7:0xabc:3", record.Key())
}

func TestWinnersSkipsOtherEventsAndRemovedLogs(t *testing.T) {
	records := []EventRecord{
		{EventName: "RaffleEnter", Player: "0x1"},
		{EventName: "WinnerPicked", Winner: "0x2", BlockNumber: 9, TxHash: "0xaa"},
		{EventName: "WinnerPicked", Winner: "0x3", Removed: true},
	}

	winners := Winners(records, "WinnerPicked")
	require.Len(t, winners, 1)
	require.Equal(t, "0x2", winners[0].Winner)
	require.Equal(t, uint64(9), winners[0].BlockNumber)
}
