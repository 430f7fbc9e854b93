package raffle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Revert conditions surfaced by the raffle and its coordinator.
var (
	ErrNotEnoughETHEntered = errors.New("NotEnoughETHEntered")
	ErrNotOpen             = errors.New("NotOpen")
	ErrUpkeepNotNeeded     = errors.New("UpkeepNotNeeded")
	ErrTransferFailed      = errors.New("TransferFailed")
	ErrNonexistentRequest  = errors.New("nonexistent request")
)

var customErrors = map[string]error{
	"Raffle__NotEnoughETHEntered": ErrNotEnoughETHEntered,
	"Raffle__NotOpen":             ErrNotOpen,
	"Raffle__UpKeepNotNeeded":     ErrUpkeepNotNeeded,
	"Raffle__TransferFailed":      ErrTransferFailed,
}

var reasonErrors = map[string]error{
	"nonexistent request": ErrNonexistentRequest,
}

// revertErrorSelector is the selector of Error(string).
var revertErrorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// RevertError is a decoded contract revert.
type RevertError struct {
	Reason string
	Args   []interface{}
	kind   error
}

func (e *RevertError) Error() string {
	if len(e.Args) == 0 {
		return "execution reverted: " + e.Reason
	}
	args := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		args = append(args, fmt.Sprintf("%v", arg))
	}
	return fmt.Sprintf("execution reverted: %s(%s)", e.Reason, strings.Join(args, ", "))
}

func (e *RevertError) Unwrap() error {
	return e.kind
}

// DecodeRevert converts an RPC error into a RevertError when it carries a known
// revert. Unknown errors are returned unchanged.
func DecodeRevert(err error) error {
	if err == nil {
		return nil
	}
	var revert *RevertError
	if errors.As(err, &revert) {
		return err
	}

	if data, ok := revertData(err); ok {
		if decoded := decodeRevertData(data); decoded != nil {
			return decoded
		}
	}

	// Dev nodes (hardhat, anvil) sometimes omit the data field but embed the
	// error name or reason string in the message.
	msg := err.Error()
	for name, kind := range customErrors {
		if strings.Contains(msg, name) {
			return &RevertError{Reason: name, kind: kind}
		}
	}
	for reason, kind := range reasonErrors {
		if strings.Contains(msg, reason) {
			return &RevertError{Reason: reason, kind: kind}
		}
	}
	return err
}

func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}

	switch typed := dataErr.ErrorData().(type) {
	case string:
		data, err := hexutil.Decode(typed)
		if err != nil {
			return nil, false
		}
		return data, true
	case []byte:
		return typed, true
	case map[string]interface{}:
		if nested, ok := typed["data"].(string); ok {
			data, err := hexutil.Decode(nested)
			if err != nil {
				return nil, false
			}
			return data, true
		}
	}
	return nil, false
}

func decodeRevertData(data []byte) *RevertError {
	if len(data) < 4 {
		return nil
	}

	if bytes.Equal(data[:4], revertErrorSelector) {
		reason, err := abi.UnpackRevert(data)
		if err != nil {
			return nil
		}
		return &RevertError{Reason: reason, kind: reasonErrors[reason]}
	}

	raffleABI, err := ABI()
	if err != nil {
		return nil
	}
	for name, abiErr := range raffleABI.Errors {
		if !bytes.Equal(data[:4], abiErr.ID[:4]) {
			continue
		}
		var args []interface{}
		if unpacked, err := abiErr.Unpack(data); err == nil {
			args, _ = unpacked.([]interface{})
		}
		return &RevertError{Reason: name, Args: args, kind: customErrors[name]}
	}
	return nil
}
