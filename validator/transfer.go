package validator

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// decodedTransfer is the raw (from, to, value) triple of a Transfer
// event before it is rendered for callers.
type decodedTransfer struct {
	from  common.Address
	to    common.Address
	value *big.Int
}

// decodeTransfer unpacks a standard ERC20 Transfer log: from and to are
// indexed (topics 1 and 2, left-padded to 32 bytes) and the value sits
// in the data section as a uint256.
func decodeTransfer(entry *gethtypes.Log) (*decodedTransfer, error) {
	if len(entry.Topics) < 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(entry.Topics))
	}
	if len(entry.Data) != 32 {
		return nil, fmt.Errorf("expected 32 bytes of data, got %d", len(entry.Data))
	}

	return &decodedTransfer{
		from:  common.BytesToAddress(entry.Topics[1].Bytes()),
		to:    common.BytesToAddress(entry.Topics[2].Bytes()),
		value: new(big.Int).SetBytes(entry.Data),
	}, nil
}
