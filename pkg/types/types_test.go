package types

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeader() Header {
	return Header{
		Index:     3,
		Timestamp: time.Unix(1700000000, 123),
		PrevHash:  "00abcdef",
		Nonce:     42,
	}
}

func TestHeader_SerializeDeterministic(t *testing.T) {
	h := testHeader()
	root := bytes.Repeat([]byte{0x11}, 32)

	assert.Equal(t, h.Serialize(root, 2), h.Serialize(root, 2))
}

func TestHeader_SerializeCoversEveryField(t *testing.T) {
	root := bytes.Repeat([]byte{0x11}, 32)
	base := testHeader()
	want := base.Serialize(root, 2)

	mutations := map[string]func(h *Header){
		"index":     func(h *Header) { h.Index++ },
		"timestamp": func(h *Header) { h.Timestamp = h.Timestamp.Add(time.Nanosecond) },
		"prev hash": func(h *Header) { h.PrevHash += "0" },
		"nonce":     func(h *Header) { h.Nonce++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			h := testHeader()
			mutate(&h)
			assert.NotEqual(t, want, h.Serialize(root, 2))
		})
	}

	assert.NotEqual(t, want, base.Serialize(root, 3), "tx count")
	assert.NotEqual(t, want, base.Serialize(bytes.Repeat([]byte{0x22}, 32), 2), "tx root")
}

func TestNewDraft(t *testing.T) {
	txs := []string{"a", "b"}
	ts := time.Unix(1700000000, 0)

	d := NewDraft(1, txs, ts, "prev")
	txs[0] = "mutated"

	assert.Equal(t, uint64(1), d.Header.Index)
	assert.Equal(t, uint64(0), d.Header.Nonce)
	assert.Equal(t, "prev", d.Header.PrevHash)
	assert.True(t, ts.Equal(d.Header.Timestamp))
	assert.Equal(t, []string{"a", "b"}, d.Transactions)
}

func TestBlock_Immutable(t *testing.T) {
	d := NewDraft(1, []string{"a"}, time.Unix(1700000000, 0), "prev")
	d.Header.Nonce = 7
	block := d.Seal("hash")

	// Later draft changes do not leak into the sealed block
	d.Header.Nonce = 8
	d.Transactions[0] = "changed"

	assert.Equal(t, uint64(7), block.Nonce())
	assert.Equal(t, "hash", block.Hash())

	txs := block.Transactions()
	require.Len(t, txs, 1)
	txs[0] = "mutated"
	assert.Equal(t, []string{"a"}, block.Transactions())
	assert.Equal(t, 1, block.TxCount())

	header := block.Header()
	header.Index = 99
	assert.Equal(t, uint64(1), block.Index())
}

func TestRestoreBlock(t *testing.T) {
	h := testHeader()
	block := RestoreBlock(h, nil, "anything")

	assert.Equal(t, h, block.Header())
	assert.Equal(t, "anything", block.Hash())
	assert.Empty(t, block.Transactions())
	assert.Equal(t, 0, block.TxCount())
}
