package types

import (
	"bytes"
	"encoding/binary"
	"time"
)

// GenesisPrevHash is the previous-hash sentinel carried by the genesis block
const GenesisPrevHash = "0"

// Header contains the block metadata covered by the block hash
type Header struct {
	Index     uint64    // Position in the chain, 0 for genesis
	Timestamp time.Time // Block creation time
	PrevHash  string    // Hex hash of the previous block
	Nonce     uint64    // Nonce for PoW
}

// Serialize converts Header to bytes for hashing.
// txRoot and txCount bind the block's transactions into the encoding.
func (h *Header) Serialize(txRoot []byte, txCount int) []byte {
	var buf bytes.Buffer

	// Index (8 bytes)
	binary.Write(&buf, binary.LittleEndian, h.Index)

	// Timestamp (8 bytes - Unix nanoseconds)
	binary.Write(&buf, binary.LittleEndian, h.Timestamp.UnixNano())

	// PrevHash (length-prefixed)
	writeBytes(&buf, []byte(h.PrevHash))

	// Transaction count (4 bytes)
	binary.Write(&buf, binary.LittleEndian, uint32(txCount))

	// Transactions root (length-prefixed)
	writeBytes(&buf, txRoot)

	// Nonce (8 bytes)
	binary.Write(&buf, binary.LittleEndian, h.Nonce)

	return buf.Bytes()
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(b)))
	buf.Write(b)
}

// Draft is a block that has not been sealed by proof-of-work yet.
// Its nonce is the only field the miner touches.
type Draft struct {
	Header       Header
	Transactions []string
}

// NewDraft creates an unsealed block with nonce 0.
// The transaction slice is copied so later changes by the caller are not seen.
func NewDraft(index uint64, transactions []string, timestamp time.Time, prevHash string) *Draft {
	return &Draft{
		Header: Header{
			Index:     index,
			Timestamp: timestamp,
			PrevHash:  prevHash,
			Nonce:     0,
		},
		Transactions: cloneTransactions(transactions),
	}
}

// Seal freezes the draft at its current nonce under the given hash.
// Callers are expected to pass the hash of the draft's current fields.
func (d *Draft) Seal(hash string) *Block {
	return RestoreBlock(d.Header, d.Transactions, hash)
}

// Block represents a sealed block. It cannot be modified once built.
type Block struct {
	header       Header
	transactions []string
	hash         string
}

// RestoreBlock rebuilds a block from raw fields without checking them.
// Whether the result is a valid member of a chain is decided by validation.
func RestoreBlock(header Header, transactions []string, hash string) *Block {
	return &Block{
		header:       header,
		transactions: cloneTransactions(transactions),
		hash:         hash,
	}
}

func (b *Block) Header() Header       { return b.header }
func (b *Block) Index() uint64        { return b.header.Index }
func (b *Block) Timestamp() time.Time { return b.header.Timestamp }
func (b *Block) PrevHash() string     { return b.header.PrevHash }
func (b *Block) Nonce() uint64        { return b.header.Nonce }
func (b *Block) Hash() string         { return b.hash }

// Transactions returns a copy of the block's payloads
func (b *Block) Transactions() []string {
	return cloneTransactions(b.transactions)
}

// TxCount returns the number of payloads in the block
func (b *Block) TxCount() int {
	return len(b.transactions)
}

func cloneTransactions(txs []string) []string {
	out := make([]string, len(txs))
	copy(out, txs)
	return out
}
