package blockchain

import (
	"errors"
	"fmt"

	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/pow"
	"github.com/yourusername/powledger/pkg/types"
)

var (
	ErrBlockNotFound    = errors.New("block not found")
	ErrEmptyChain       = errors.New("chain has no genesis block")
	ErrBadGenesis       = errors.New("malformed genesis block")
	ErrHashMismatch     = errors.New("stored hash does not match block contents")
	ErrBrokenLink       = errors.New("previous hash does not match previous block")
	ErrInsufficientWork = errors.New("hash does not meet difficulty")
	ErrIndexGap         = errors.New("block index does not follow previous block")
)

// ValidationError reports the first block that broke a chain invariant
type ValidationError struct {
	Index  int   // position in the chain
	Reason error // one of the Err* sentinels above
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid block at position %d: %v", e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func invalid(i int, reason error) error {
	return &ValidationError{Index: i, Reason: reason}
}

// ValidateBlocks checks hash integrity, linkage and proof-of-work for every
// block and stops at the first failure. Genesis must have index 0, prev hash
// "0", no transactions, a self-consistent hash and enough work. Timestamps are not checked for
// ordering.
func ValidateBlocks(blocks []*types.Block, difficulty int, alg crypto.Algorithm) error {
	if len(blocks) == 0 {
		return ErrEmptyChain
	}

	genesis := blocks[0]
	switch {
	case genesis.Index() != 0 || genesis.PrevHash() != types.GenesisPrevHash || genesis.TxCount() != 0:
		return invalid(0, ErrBadGenesis)
	case genesis.Hash() != pow.ComputeHash(alg, genesis.Header(), genesis.Transactions()):
		return invalid(0, ErrHashMismatch)
	case !pow.HasLeadingZeros(genesis.Hash(), difficulty):
		return invalid(0, ErrInsufficientWork)
	}

	for i := 1; i < len(blocks); i++ {
		block := blocks[i]
		prevBlock := blocks[i-1]

		if block.Hash() != pow.ComputeHash(alg, block.Header(), block.Transactions()) {
			return invalid(i, ErrHashMismatch)
		}

		if block.PrevHash() != prevBlock.Hash() {
			return invalid(i, ErrBrokenLink)
		}

		if !pow.HasLeadingZeros(block.Hash(), difficulty) {
			return invalid(i, ErrInsufficientWork)
		}

		if block.Index() != prevBlock.Index()+1 {
			return invalid(i, ErrIndexGap)
		}
	}

	return nil
}
