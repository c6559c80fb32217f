package blockchain

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/powledger/internal/pow"
	"github.com/yourusername/powledger/pkg/types"
)

// threeBlockChain returns genesis plus two mined blocks
func threeBlockChain(t *testing.T) *Blockchain {
	t.Helper()
	bc := setupTestBlockchain(t)
	mineWith(t, bc, "Alice pays Bob 1 BTC", "Bob pays Charlie 0.5 BTC")
	mineWith(t, bc, "Charlie pays Dave 0.2 BTC")
	require.NoError(t, bc.Validate())
	return bc
}

// sealAt mines a draft at the chain's difficulty
func sealAt(t *testing.T, bc *Blockchain, draft *types.Draft) *types.Block {
	t.Helper()
	block, err := pow.NewProofOfWork(draft, bc.Difficulty(), bc.Algorithm()).Mine(context.Background())
	require.NoError(t, err)
	return block
}

func assertInvalidAt(t *testing.T, bc *Blockchain, index int, reason error) {
	t.Helper()
	err := bc.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, reason)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, index, verr.Index)
	assert.False(t, bc.IsValid())
}

func TestValidate_TamperedFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *types.Header, txs []string) []string
	}{
		{"transactions", func(h *types.Header, txs []string) []string {
			txs[0] = "Alice pays Bob 100 BTC"
			return txs
		}},
		{"dropped transaction", func(h *types.Header, txs []string) []string {
			return txs[:1]
		}},
		{"timestamp", func(h *types.Header, txs []string) []string {
			h.Timestamp = h.Timestamp.Add(time.Hour)
			return txs
		}},
		{"previous hash", func(h *types.Header, txs []string) []string {
			h.PrevHash = strings.ToUpper(h.PrevHash) + "0"
			return txs
		}},
		{"nonce", func(h *types.Header, txs []string) []string {
			h.Nonce++
			return txs
		}},
		{"index", func(h *types.Header, txs []string) []string {
			h.Index = 9
			return txs
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := threeBlockChain(t)
			original := bc.blocks[1]

			header := original.Header()
			txs := tt.mutate(&header, original.Transactions())
			bc.blocks[1] = types.RestoreBlock(header, txs, original.Hash())

			assertInvalidAt(t, bc, 1, ErrHashMismatch)
		})
	}
}

func TestValidate_RehashedWithoutWork(t *testing.T) {
	bc := threeBlockChain(t)
	original := bc.blocks[2]

	// Recompute the hash honestly but pick a nonce that fails the difficulty
	header := original.Header()
	txs := []string{"Charlie pays Mallory 0.2 BTC"}
	var hash string
	for header.Nonce = 0; ; header.Nonce++ {
		hash = pow.ComputeHash(bc.Algorithm(), header, txs)
		if !pow.HasLeadingZeros(hash, bc.Difficulty()) {
			break
		}
	}
	bc.blocks[2] = types.RestoreBlock(header, txs, hash)

	assertInvalidAt(t, bc, 2, ErrInsufficientWork)
}

func TestValidate_ResealedMiddleBlockBreaksLink(t *testing.T) {
	bc := threeBlockChain(t)
	original := bc.blocks[1]

	// A forger who re-mines block 1 still breaks the link from block 2
	draft := types.NewDraft(original.Index(), []string{"Alice pays Mallory 1 BTC"}, original.Timestamp(), original.PrevHash())
	bc.blocks[1] = sealAt(t, bc, draft)

	assertInvalidAt(t, bc, 2, ErrBrokenLink)
}

func TestValidate_SubstitutedPredecessor(t *testing.T) {
	bc := threeBlockChain(t)

	draft := types.NewDraft(1, []string{"tx"}, time.Unix(1800000000, 0), "00"+strings.Repeat("f", 62))
	bc.blocks[1] = sealAt(t, bc, draft)

	assertInvalidAt(t, bc, 1, ErrBrokenLink)
}

func TestValidate_Reordered(t *testing.T) {
	bc := threeBlockChain(t)
	bc.blocks[1], bc.blocks[2] = bc.blocks[2], bc.blocks[1]

	assertInvalidAt(t, bc, 1, ErrBrokenLink)
}

func TestValidate_IndexGap(t *testing.T) {
	bc := threeBlockChain(t)
	tip := bc.Tip()

	draft := types.NewDraft(tip.Index()+2, []string{"skip"}, time.Unix(1800000000, 0), tip.Hash())
	bc.blocks = append(bc.blocks, sealAt(t, bc, draft))

	assertInvalidAt(t, bc, 3, ErrIndexGap)
}

func TestValidate_Genesis(t *testing.T) {
	t.Run("tampered timestamp", func(t *testing.T) {
		bc := threeBlockChain(t)
		genesis := bc.blocks[0]
		header := genesis.Header()
		header.Timestamp = header.Timestamp.Add(time.Second)
		bc.blocks[0] = types.RestoreBlock(header, nil, genesis.Hash())

		assertInvalidAt(t, bc, 0, ErrHashMismatch)
	})

	t.Run("non-zero prev hash", func(t *testing.T) {
		bc := threeBlockChain(t)
		draft := types.NewDraft(0, nil, time.Unix(1700000000, 0), "00ff")
		bc.blocks[0] = sealAt(t, bc, draft)

		assertInvalidAt(t, bc, 0, ErrBadGenesis)
	})

	t.Run("added transactions", func(t *testing.T) {
		bc := threeBlockChain(t)
		genesis := bc.blocks[0]
		bc.blocks[0] = types.RestoreBlock(genesis.Header(), []string{"premine"}, genesis.Hash())

		assertInvalidAt(t, bc, 0, ErrBadGenesis)
	})

	t.Run("resealed with payload", func(t *testing.T) {
		bc := threeBlockChain(t)
		genesis := bc.blocks[0]
		draft := types.NewDraft(0, []string{"premine 1000000 BTC"}, genesis.Timestamp(), types.GenesisPrevHash)
		bc.blocks = []*types.Block{sealAt(t, bc, draft)}

		assertInvalidAt(t, bc, 0, ErrBadGenesis)
	})

	t.Run("skipped work", func(t *testing.T) {
		bc := threeBlockChain(t)
		header := bc.blocks[0].Header()
		var hash string
		for header.Nonce = 0; ; header.Nonce++ {
			hash = pow.ComputeHash(bc.Algorithm(), header, nil)
			if !pow.HasLeadingZeros(hash, bc.Difficulty()) {
				break
			}
		}
		bc.blocks[0] = types.RestoreBlock(header, nil, hash)

		assertInvalidAt(t, bc, 0, ErrInsufficientWork)
	})
}

func TestValidateBlocks_Empty(t *testing.T) {
	assert.ErrorIs(t, ValidateBlocks(nil, 2, "sha256"), ErrEmptyChain)
}

func TestValidate_TimestampsNotOrdered(t *testing.T) {
	clock := []time.Time{time.Unix(1700000100, 0), time.Unix(1700000000, 0)}
	next := 0
	bc, err := NewBlockchain(context.Background(), DefaultConfig(), WithClock(func() time.Time {
		ts := clock[next]
		next++
		return ts
	}))
	require.NoError(t, err)

	mineWith(t, bc, "earlier than genesis")

	assert.True(t, bc.Tip().Timestamp().Before(bc.blocks[0].Timestamp()))
	assert.NoError(t, bc.Validate())
}
