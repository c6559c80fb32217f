package pow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/pkg/types"
)

func createTestDraft() *types.Draft {
	return types.NewDraft(
		1,
		[]string{"test transaction"},
		time.Unix(1700000000, 123456789),
		"00ab",
	)
}

func TestComputeHash_Deterministic(t *testing.T) {
	draft := createTestDraft()

	hash1 := DraftHash(crypto.SHA256, draft)
	hash2 := DraftHash(crypto.SHA256, createTestDraft())

	assert.Equal(t, hash1, hash2, "same fields must give the same hash")
	assert.Len(t, hash1, 64)
}

func TestComputeHash_FieldSensitivity(t *testing.T) {
	base := createTestDraft()
	baseHash := DraftHash(crypto.SHA256, base)

	tests := []struct {
		name   string
		mutate func(d *types.Draft)
	}{
		{"index", func(d *types.Draft) { d.Header.Index++ }},
		{"timestamp", func(d *types.Draft) { d.Header.Timestamp = d.Header.Timestamp.Add(time.Nanosecond) }},
		{"prev hash", func(d *types.Draft) { d.Header.PrevHash = "00ac" }},
		{"nonce", func(d *types.Draft) { d.Header.Nonce = 7 }},
		{"payload", func(d *types.Draft) { d.Transactions[0] = "test transactioN" }},
		{"extra payload", func(d *types.Draft) { d.Transactions = append(d.Transactions, "test transaction") }},
		{"no payload", func(d *types.Draft) { d.Transactions = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := createTestDraft()
			tt.mutate(draft)
			assert.NotEqual(t, baseHash, DraftHash(crypto.SHA256, draft))
		})
	}
}

func TestComputeHash_DuplicatedLastPayload(t *testing.T) {
	// duplicate-last merkle padding must not let [a b c] and [a b c c] collide
	header := createTestDraft().Header
	three := ComputeHash(crypto.SHA256, header, []string{"a", "b", "c"})
	four := ComputeHash(crypto.SHA256, header, []string{"a", "b", "c", "c"})

	assert.NotEqual(t, three, four)
}

func TestHasLeadingZeros(t *testing.T) {
	tests := []struct {
		name       string
		hash       string
		difficulty int
		want       bool
	}{
		{"zero difficulty", "ffff", 0, true},
		{"negative difficulty", "ffff", -1, true},
		{"exact", "00ff", 2, true},
		{"more zeros than needed", "000f", 2, true},
		{"too few zeros", "0fff", 2, false},
		{"zero not leading", "f00f", 2, false},
		{"longer than hash", "00", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLeadingZeros(tt.hash, tt.difficulty))
		})
	}
}

func TestCheckDifficulty(t *testing.T) {
	assert.NoError(t, CheckDifficulty(0))
	assert.NoError(t, CheckDifficulty(MaxDifficulty))
	assert.ErrorIs(t, CheckDifficulty(-1), ErrInvalidDifficulty)
	assert.ErrorIs(t, CheckDifficulty(MaxDifficulty+1), ErrInvalidDifficulty)
}

func TestProofOfWork_Mine_DifficultyZero(t *testing.T) {
	draft := createTestDraft()
	draft.Header.Nonce = 99

	block, err := NewProofOfWork(draft, 0, crypto.SHA256).Mine(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), block.Nonce(), "difficulty 0 must succeed at nonce 0")
	assert.Equal(t, uint64(0), draft.Header.Nonce)
	assert.Equal(t, DraftHash(crypto.SHA256, draft), block.Hash())
}

func TestProofOfWork_Mine_Postcondition(t *testing.T) {
	for _, alg := range crypto.Algorithms() {
		for _, difficulty := range []int{1, 2, 3} {
			draft := createTestDraft()
			block, err := NewProofOfWork(draft, difficulty, alg).Mine(context.Background())
			require.NoError(t, err)

			assert.True(t, HasLeadingZeros(block.Hash(), difficulty), "%s d=%d hash %s", alg, difficulty, block.Hash())
			assert.Equal(t, ComputeHash(alg, block.Header(), block.Transactions()), block.Hash())
			assert.Equal(t, block.Nonce(), draft.Header.Nonce, "winning nonce is stored on the draft")
			assert.True(t, Validate(block, difficulty, alg))
		}
	}
}

func TestProofOfWork_Mine_FindsSmallestNonce(t *testing.T) {
	draft := createTestDraft()
	block, err := NewProofOfWork(draft, 2, crypto.SHA256).Mine(context.Background())
	require.NoError(t, err)

	probe := createTestDraft()
	for n := uint64(0); n < block.Nonce(); n++ {
		probe.Header.Nonce = n
		assert.False(t, HasLeadingZeros(DraftHash(crypto.SHA256, probe), 2), "nonce %d already satisfied difficulty", n)
	}
}

func TestValidate_RejectsTampering(t *testing.T) {
	block, err := NewProofOfWork(createTestDraft(), 2, crypto.SHA256).Mine(context.Background())
	require.NoError(t, err)
	require.True(t, Validate(block, 2, crypto.SHA256))

	header := block.Header()
	header.Nonce++
	tampered := types.RestoreBlock(header, block.Transactions(), block.Hash())
	assert.False(t, Validate(tampered, 2, crypto.SHA256))

	assert.False(t, Validate(block, 2, crypto.SHA3_256), "wrong algorithm must fail")
}

func TestProofOfWork_MaxAttempts(t *testing.T) {
	pow := NewProofOfWork(createTestDraft(), MaxDifficulty, crypto.SHA256)
	pow.MaxAttempts = 100

	block, err := pow.Mine(context.Background())
	assert.Nil(t, block)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)

	block, err = pow.MineParallel(context.Background(), 4)
	assert.Nil(t, block)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
}

func TestProofOfWork_InvalidDifficulty(t *testing.T) {
	_, err := NewProofOfWork(createTestDraft(), MaxDifficulty+1, crypto.SHA256).Mine(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDifficulty)

	_, err = NewProofOfWork(createTestDraft(), -1, crypto.SHA256).MineParallel(context.Background(), 2)
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
}

func TestProofOfWork_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProofOfWork(createTestDraft(), MaxDifficulty, crypto.SHA256).Mine(ctx)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = NewProofOfWork(createTestDraft(), MaxDifficulty, crypto.SHA256).MineParallel(ctx, 4)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProofOfWork_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewProofOfWork(createTestDraft(), MaxDifficulty, crypto.SHA256).MineParallel(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProofOfWork_MineParallel(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 4} {
		draft := createTestDraft()
		block, err := NewProofOfWork(draft, 3, crypto.SHA256).MineParallel(context.Background(), workers)
		require.NoError(t, err)

		assert.True(t, Validate(block, 3, crypto.SHA256), "workers=%d", workers)
		assert.Equal(t, block.Nonce(), draft.Header.Nonce)
	}
}

func BenchmarkMine_Difficulty2(b *testing.B) {
	for i := 0; i < b.N; i++ {
		draft := createTestDraft()
		draft.Header.Index = uint64(i)
		NewProofOfWork(draft, 2, crypto.SHA256).Mine(context.Background())
	}
}

func BenchmarkMineParallel_Difficulty4(b *testing.B) {
	for i := 0; i < b.N; i++ {
		draft := createTestDraft()
		draft.Header.Index = uint64(i)
		NewProofOfWork(draft, 4, crypto.SHA256).MineParallel(context.Background(), 0)
	}
}

func BenchmarkValidate(b *testing.B) {
	block, _ := NewProofOfWork(createTestDraft(), 2, crypto.SHA256).Mine(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(block, 2, crypto.SHA256)
	}
}
