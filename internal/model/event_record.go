package model

// EventRecord is the normalized representation of a raffle event for storage.
// Amounts and ids are decimal strings so JSON consumers keep full precision.
type EventRecord struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name"`
	Player      string `json:"player,omitempty"`
	Winner      string `json:"winner,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Removed     bool   `json:"removed"`
	Timestamp   uint64 `json:"timestamp"`
	IngestedAt  string `json:"ingested_at"`
}

// Key identifies the record's log on its chain.
func (r EventRecord) Key() string {
	return EventKey(r.BlockNumber, r.TxHash, r.LogIndex)
}

// Winner is a settled round as stored in the winners table.
type Winner struct {
	ChainID     uint64 `json:"chain_id"`
	Address     string `json:"address"`
	Winner      string `json:"winner"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	Timestamp   uint64 `json:"timestamp"`
}

// Winners extracts the WinnerPicked records of a batch.
func Winners(records []EventRecord, eventName string) []Winner {
	out := make([]Winner, 0)
	for _, r := range records {
		if r.EventName != eventName || r.Winner == "" || r.Removed {
			continue
		}
		out = append(out, Winner{
			ChainID:     r.ChainID,
			Address:     r.Address,
			Winner:      r.Winner,
			BlockNumber: r.BlockNumber,
			TxHash:      r.TxHash,
			Timestamp:   r.Timestamp,
		})
	}
	return out
}
