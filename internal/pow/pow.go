package pow

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/merkle"
	"github.com/yourusername/powledger/pkg/types"
)

const (
	// MaxDifficulty is the number of hex digits in a 256-bit digest.
	// Anything higher can never be satisfied.
	MaxDifficulty = 2 * crypto.DigestSize

	// checkInterval is how many nonces are tried between context checks
	checkInterval = 4096
)

var (
	// ErrAttemptsExhausted is returned when MaxAttempts candidates failed
	ErrAttemptsExhausted = errors.New("pow: nonce attempts exhausted")

	// ErrInvalidDifficulty is returned for difficulties outside [0, MaxDifficulty]
	ErrInvalidDifficulty = errors.New("pow: invalid difficulty")
)

// ComputeHash returns the hex digest of a block's fields.
// Transactions are bound through their merkle root and count.
func ComputeHash(alg crypto.Algorithm, header types.Header, transactions []string) string {
	root := merkle.TransactionsRoot(alg, transactions)
	return alg.HexSum(header.Serialize(root, len(transactions)))
}

// DraftHash returns the provisional hash of an unsealed block at its current nonce
func DraftHash(alg crypto.Algorithm, draft *types.Draft) string {
	return ComputeHash(alg, draft.Header, draft.Transactions)
}

// HasLeadingZeros reports whether hash starts with difficulty '0' characters
func HasLeadingZeros(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// Validate checks that the block's stored hash matches its fields and meets difficulty
func Validate(block *types.Block, difficulty int, alg crypto.Algorithm) bool {
	return block.Hash() == ComputeHash(alg, block.Header(), block.Transactions()) &&
		HasLeadingZeros(block.Hash(), difficulty)
}

// CheckDifficulty returns ErrInvalidDifficulty unless 0 <= difficulty <= MaxDifficulty
func CheckDifficulty(difficulty int) error {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidDifficulty, difficulty, MaxDifficulty)
	}
	return nil
}

// ProofOfWork searches for a nonce that seals a draft block
type ProofOfWork struct {
	Draft      *types.Draft
	Difficulty int
	Algorithm  crypto.Algorithm

	// MaxAttempts bounds the number of nonces tried; 0 means unbounded
	MaxAttempts uint64
}

// NewProofOfWork creates a new PoW instance for a draft block
func NewProofOfWork(draft *types.Draft, difficulty int, alg crypto.Algorithm) *ProofOfWork {
	return &ProofOfWork{
		Draft:      draft,
		Difficulty: difficulty,
		Algorithm:  alg,
	}
}

// Mine resets the nonce to 0 and increments it until the hash meets the
// difficulty. The winning nonce is left on the draft and the sealed block
// is returned.
func (pow *ProofOfWork) Mine(ctx context.Context) (*types.Block, error) {
	if err := CheckDifficulty(pow.Difficulty); err != nil {
		return nil, err
	}

	header := pow.Draft.Header
	header.Nonce = 0
	root := merkle.TransactionsRoot(pow.Algorithm, pow.Draft.Transactions)
	count := len(pow.Draft.Transactions)

	for attempts := uint64(0); pow.MaxAttempts == 0 || attempts < pow.MaxAttempts; attempts++ {
		if attempts%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		hash := pow.Algorithm.HexSum(header.Serialize(root, count))
		if HasLeadingZeros(hash, pow.Difficulty) {
			pow.Draft.Header.Nonce = header.Nonce
			return pow.Draft.Seal(hash), nil
		}

		header.Nonce++
	}

	return nil, fmt.Errorf("%w after %d tries at difficulty %d", ErrAttemptsExhausted, pow.MaxAttempts, pow.Difficulty)
}

// MineParallel splits the nonce space across workers: worker w tries
// w, w+workers, w+2*workers, ... The first worker to succeed stops the rest.
// MaxAttempts applies to the total across all workers.
func (pow *ProofOfWork) MineParallel(ctx context.Context, workers int) (*types.Block, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers == 1 {
		return pow.Mine(ctx)
	}
	if err := CheckDifficulty(pow.Difficulty); err != nil {
		return nil, err
	}

	root := merkle.TransactionsRoot(pow.Algorithm, pow.Draft.Transactions)
	count := len(pow.Draft.Transactions)
	base := pow.Draft.Header

	var (
		once   sync.Once
		winner types.Header
		hash   string
	)

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(searchCtx)
	for w := 0; w < workers; w++ {
		start := uint64(w)
		g.Go(func() error {
			header := base
			step := uint64(workers)
			for header.Nonce = start; pow.MaxAttempts == 0 || header.Nonce < pow.MaxAttempts; header.Nonce += step {
				if (header.Nonce/step)%checkInterval == 0 {
					if gctx.Err() != nil {
						return nil
					}
				}

				candidate := pow.Algorithm.HexSum(header.Serialize(root, count))
				if HasLeadingZeros(candidate, pow.Difficulty) {
					once.Do(func() {
						winner = header
						hash = candidate
						cancel()
					})
					return nil
				}

				if header.Nonce > ^uint64(0)-step {
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if hash == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d tries at difficulty %d", ErrAttemptsExhausted, pow.MaxAttempts, pow.Difficulty)
	}

	pow.Draft.Header.Nonce = winner.Nonce
	return pow.Draft.Seal(hash), nil
}
