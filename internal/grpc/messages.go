package grpc

import (
	"time"

	"github.com/yourusername/powledger/pkg/types"
)

// Block is the wire form of a sealed block
type Block struct {
	Index        uint64    `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	PrevHash     string    `json:"previous_hash"`
	Nonce        uint64    `json:"nonce"`
	Hash         string    `json:"hash"`
	Transactions []string  `json:"transactions"`
}

func blockToMessage(block *types.Block) *Block {
	return &Block{
		Index:        block.Index(),
		Timestamp:    block.Timestamp(),
		PrevHash:     block.PrevHash(),
		Nonce:        block.Nonce(),
		Hash:         block.Hash(),
		Transactions: block.Transactions(),
	}
}

// ToBlock rebuilds the block so it can be validated locally
func (b *Block) ToBlock() *types.Block {
	header := types.Header{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		PrevHash:  b.PrevHash,
		Nonce:     b.Nonce,
	}
	return types.RestoreBlock(header, b.Transactions, b.Hash)
}

type SubmitTransactionRequest struct {
	Payload string `json:"payload"`
}

type SubmitTransactionResponse struct {
	Pending int `json:"pending"`
}

type MineRequest struct{}

type MineResponse struct {
	Mined bool   `json:"mined"`
	Index uint64 `json:"index,omitempty"`
	Block *Block `json:"block,omitempty"`
}

type ValidateRequest struct{}

type ValidateResponse struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	BlockIndex int    `json:"block_index,omitempty"`
}

type GetChainRequest struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit"` // 0 returns every block from From
}

type GetChainResponse struct {
	Height int      `json:"height"`
	Blocks []*Block `json:"blocks"`
}

// GetBlockRequest looks a block up by hash, or by index when Hash is empty
type GetBlockRequest struct {
	Hash  string  `json:"hash,omitempty"`
	Index *uint64 `json:"index,omitempty"`
}

type GetInfoRequest struct{}

type ChainInfo struct {
	Height     int    `json:"height"`
	TipHash    string `json:"tip_hash"`
	Difficulty int    `json:"difficulty"`
	Algorithm  string `json:"algorithm"`
	Pending    int    `json:"pending"`
}

type GetPendingRequest struct{}

type GetPendingResponse struct {
	Transactions []string `json:"transactions"`
}

type StartMiningRequest struct {
	IntervalMs int64 `json:"interval_ms,omitempty"` // 0 keeps the server default
}

type StartMiningResponse struct {
	Started bool `json:"started"`
}

type StopMiningRequest struct{}

type StopMiningResponse struct {
	Stopped bool `json:"stopped"`
}

type GetMiningInfoRequest struct{}

type MiningInfo struct {
	IsMining    bool  `json:"is_mining"`
	BlocksMined int64 `json:"blocks_mined"`
	IntervalMs  int64 `json:"interval_ms"`
}

type SubscribeBlocksRequest struct{}
