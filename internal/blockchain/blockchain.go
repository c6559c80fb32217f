package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/pow"
	"github.com/yourusername/powledger/internal/storage"
	"github.com/yourusername/powledger/pkg/types"
)

const (
	// DefaultDifficulty is the number of leading zero hex digits required by default
	DefaultDifficulty = 2
)

// Config holds the parameters fixed for the lifetime of a chain
type Config struct {
	Difficulty  int
	Algorithm   crypto.Algorithm
	MaxAttempts uint64 // 0 means unbounded
	Workers     int    // >1 mines with parallel nonce search, 0 uses every CPU
}

// DefaultConfig returns the configuration used by the demo node
func DefaultConfig() Config {
	return Config{
		Difficulty: DefaultDifficulty,
		Algorithm:  crypto.DefaultAlgorithm,
		Workers:    1,
	}
}

// Validate checks the config before a chain is built on it
func (c Config) Validate() error {
	if err := pow.CheckDifficulty(c.Difficulty); err != nil {
		return err
	}
	if !c.Algorithm.Valid() {
		return fmt.Errorf("unknown hash algorithm %q", c.Algorithm)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Option customizes a Blockchain
type Option func(*Blockchain)

// WithLogger sets the logger used for genesis and mining events
func WithLogger(logger *zap.Logger) Option {
	return func(bc *Blockchain) { bc.logger = logger }
}

// WithClock replaces time.Now as the block timestamp source
func WithClock(now func() time.Time) Option {
	return func(bc *Blockchain) { bc.now = now }
}

// WithIndex mirrors every appended block into a storage index
func WithIndex(index *storage.Storage) Option {
	return func(bc *Blockchain) { bc.index = index }
}

// Blockchain is an append-only sequence of sealed blocks plus the
// transactions waiting to be mined.
//
// A Blockchain is not safe for concurrent use. Callers sharing one across
// goroutines must hold a lock around every call.
type Blockchain struct {
	blocks  []*types.Block
	pending []string
	cfg     Config

	logger *zap.Logger
	now    func() time.Time
	index  *storage.Storage
}

// NewBlockchain creates a new blockchain with a sealed genesis block
func NewBlockchain(ctx context.Context, cfg Config, opts ...Option) (*Blockchain, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = crypto.DefaultAlgorithm
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}

	bc := &Blockchain{
		pending: []string{},
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(bc)
	}

	genesis, err := bc.seal(ctx, types.NewDraft(0, nil, bc.now(), types.GenesisPrevHash))
	if err != nil {
		return nil, fmt.Errorf("failed to mine genesis block: %w", err)
	}
	if err := bc.appendBlock(genesis); err != nil {
		return nil, err
	}

	bc.logger.Info("genesis block created",
		zap.String("hash", genesis.Hash()),
		zap.Uint64("nonce", genesis.Nonce()),
		zap.Int("difficulty", cfg.Difficulty),
		zap.Stringer("algorithm", cfg.Algorithm),
	)

	return bc, nil
}

// AddTransaction queues an opaque payload for the next block
func (bc *Blockchain) AddTransaction(payload string) {
	bc.pending = append(bc.pending, payload)
}

// Mine seals the pending transactions into a new block.
// With nothing pending it changes nothing and returns mined == false.
// On error the chain and the pending transactions are left as they were.
func (bc *Blockchain) Mine(ctx context.Context) (index uint64, mined bool, err error) {
	if len(bc.pending) == 0 {
		bc.logger.Debug("nothing to mine")
		return 0, false, nil
	}

	tip := bc.Tip()
	draft := types.NewDraft(tip.Index()+1, bc.pending, bc.now(), tip.Hash())

	start := time.Now()
	block, err := bc.seal(ctx, draft)
	if err != nil {
		return 0, false, fmt.Errorf("failed to mine block %d: %w", draft.Header.Index, err)
	}

	if err := bc.appendBlock(block); err != nil {
		return 0, false, err
	}
	bc.pending = []string{}

	bc.logger.Info("block mined",
		zap.Uint64("index", block.Index()),
		zap.String("hash", block.Hash()),
		zap.Uint64("nonce", block.Nonce()),
		zap.Int("transactions", block.TxCount()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return block.Index(), true, nil
}

func (bc *Blockchain) seal(ctx context.Context, draft *types.Draft) (*types.Block, error) {
	proofOfWork := pow.NewProofOfWork(draft, bc.cfg.Difficulty, bc.cfg.Algorithm)
	proofOfWork.MaxAttempts = bc.cfg.MaxAttempts

	if bc.cfg.Workers == 1 {
		return proofOfWork.Mine(ctx)
	}
	return proofOfWork.MineParallel(ctx, bc.cfg.Workers)
}

// appendBlock indexes the block first so a failed write leaves the chain untouched
func (bc *Blockchain) appendBlock(block *types.Block) error {
	if bc.index != nil {
		if err := bc.index.SaveBlock(block); err != nil {
			return fmt.Errorf("failed to index block %d: %w", block.Index(), err)
		}
	}
	bc.blocks = append(bc.blocks, block)
	return nil
}

// Validate walks the whole chain and returns the first broken invariant
func (bc *Blockchain) Validate() error {
	return ValidateBlocks(bc.blocks, bc.cfg.Difficulty, bc.cfg.Algorithm)
}

// IsValid reports whether Validate finds no problem
func (bc *Blockchain) IsValid() bool {
	err := bc.Validate()
	if err != nil {
		bc.logger.Warn("chain validation failed", zap.Error(err))
	}
	return err == nil
}

// Tip returns the most recent block
func (bc *Blockchain) Tip() *types.Block {
	return bc.blocks[len(bc.blocks)-1]
}

// Blocks returns the chain in order. Blocks are immutable so the
// returned slice shares them; the slice itself is a copy.
func (bc *Blockchain) Blocks() []*types.Block {
	out := make([]*types.Block, len(bc.blocks))
	copy(out, bc.blocks)
	return out
}

// GetBlock returns a block by index
func (bc *Blockchain) GetBlock(index uint64) (*types.Block, error) {
	if index >= uint64(len(bc.blocks)) {
		return nil, fmt.Errorf("block %d: %w", index, ErrBlockNotFound)
	}
	return bc.blocks[index], nil
}

// GetBlockByHash finds a block by its hash
func (bc *Blockchain) GetBlockByHash(hash string) (*types.Block, error) {
	if bc.index != nil {
		stored, err := bc.index.GetBlock(hash)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("block %s: %w", hash, ErrBlockNotFound)
		}
		if err != nil {
			return nil, err
		}
		return bc.GetBlock(stored.Index())
	}

	for _, block := range bc.blocks {
		if block.Hash() == hash {
			return block, nil
		}
	}
	return nil, fmt.Errorf("block %s: %w", hash, ErrBlockNotFound)
}

// Pending returns a copy of the transactions waiting to be mined
func (bc *Blockchain) Pending() []string {
	out := make([]string, len(bc.pending))
	copy(out, bc.pending)
	return out
}

// Height returns the number of blocks, genesis included
func (bc *Blockchain) Height() int {
	return len(bc.blocks)
}

// Difficulty returns the fixed number of leading zero hex digits required
func (bc *Blockchain) Difficulty() int {
	return bc.cfg.Difficulty
}

// Algorithm returns the digest algorithm used for block hashes
func (bc *Blockchain) Algorithm() crypto.Algorithm {
	return bc.cfg.Algorithm
}

// Config returns the chain's configuration
func (bc *Blockchain) Config() Config {
	return bc.cfg
}
