package model

import "fmt"

// EventKey is the de-duplication key of a log: block, tx hash and log index.
func EventKey(blockNumber uint64, txHash string, logIndex uint64) string {
	return fmt.Sprintf("%d:%s:%d", blockNumber, txHash, logIndex)
}
