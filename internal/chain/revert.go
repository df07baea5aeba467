package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertReason extracts a human-readable revert reason from an error
// returned by a call or transaction.  It returns "" when none is available.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, "execution reverted: "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// UserMessage is the text shown to API clients for a failed transaction:
// the revert reason when one exists, otherwise "unknown error".
func UserMessage(err error) string {
	if r := RevertReason(err); r != "" {
		return r
	}
	return "unknown error"
}
