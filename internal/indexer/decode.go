package indexer

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"raffleHarness/internal/model"
	"raffleHarness/internal/raffle"
)

// EventParser decodes raffle logs.
type EventParser interface {
	ParseRaffleEnter(log types.Log) (*raffle.RaffleEnter, error)
	ParseRequestedRaffleWinner(log types.Log) (*raffle.RequestedRaffleWinner, error)
	ParseWinnerPicked(log types.Log) (*raffle.WinnerPicked, error)
}

// Decoder turns raffle logs into event records.
type Decoder struct {
	parser EventParser
	names  map[common.Hash]string
	topics []common.Hash
}

// NewDecoder builds a Decoder over the raffle ABI events.
func NewDecoder(parser EventParser) (*Decoder, error) {
	parsed, err := raffle.ABI()
	if err != nil {
		return nil, err
	}
	d := &Decoder{parser: parser, names: make(map[common.Hash]string, 3)}
	for _, name := range []string{raffle.EventRaffleEnter, raffle.EventRequestedRaffleWinner, raffle.EventWinnerPicked} {
		ev, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("abi has no event %s", name)
		}
		d.names[ev.ID] = name
		d.topics = append(d.topics, ev.ID)
	}
	return d, nil
}

// Topics lists the topic0 hashes the decoder understands.
func (d *Decoder) Topics() []common.Hash {
	return append([]common.Hash(nil), d.topics...)
}

// Decode builds the record of one log.
func (d *Decoder) Decode(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) (model.EventRecord, error) {
	record := model.EventRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(log.Topics) == 0 {
		return record, fmt.Errorf("log has no topics")
	}
	name, ok := d.names[log.Topics[0]]
	if !ok {
		return record, fmt.Errorf("unknown topic0 %s", log.Topics[0].Hex())
	}
	record.EventName = name

	switch name {
	case raffle.EventRaffleEnter:
		ev, err := d.parser.ParseRaffleEnter(log)
		if err != nil {
			return record, err
		}
		record.Player = ev.Player.Hex()
	case raffle.EventRequestedRaffleWinner:
		ev, err := d.parser.ParseRequestedRaffleWinner(log)
		if err != nil {
			return record, err
		}
		record.RequestID = ev.RequestId.String()
	case raffle.EventWinnerPicked:
		ev, err := d.parser.ParseWinnerPicked(log)
		if err != nil {
			return record, err
		}
		record.Winner = ev.Winner.Hex()
	}
	return record, nil
}

func decodeError(chainID uint64, log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return model.DecodeError{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
