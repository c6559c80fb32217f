package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/yourusername/powledger/pkg/types"
)

const (
	// Database prefixes
	blockPrefix = "block_"
	tipKey      = "chain_tip"
	heightKey   = "chain_height"
)

// ErrNotFound is returned when a key is absent from the index
var ErrNotFound = errors.New("storage: not found")

// Storage is a LevelDB block index kept in memory.
// It is rebuilt from the chain and never written to disk.
type Storage struct {
	db *leveldb.DB
}

// NewMemory creates a new in-memory storage instance
func NewMemory() (*Storage, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// blockRecord is the gob form of a sealed block
type blockRecord struct {
	Header       types.Header
	Transactions []string
	Hash         string
}

// SaveBlock indexes a block by hash and moves the tip and height to it
func (s *Storage) SaveBlock(block *types.Block) error {
	serialized, err := serializeBlock(block)
	if err != nil {
		return fmt.Errorf("failed to serialize block: %w", err)
	}

	height, err := encodeHeight(block.Index() + 1)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(blockKey(block.Hash()), serialized)
	batch.Put([]byte(tipKey), []byte(block.Hash()))
	batch.Put([]byte(heightKey), height)

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save block %d: %w", block.Index(), err)
	}

	return nil
}

// GetBlock retrieves a block by hash
func (s *Storage) GetBlock(hash string) (*types.Block, error) {
	data, err := s.get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", hash, err)
	}

	block, err := deserializeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize block: %w", err)
	}

	return block, nil
}

// GetChainTip retrieves the hash of the latest block
func (s *Storage) GetChainTip() (string, error) {
	data, err := s.get([]byte(tipKey))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetChainHeight retrieves the number of indexed blocks
func (s *Storage) GetChainHeight() (uint64, error) {
	data, err := s.get([]byte(heightKey))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var height uint64
	decoder := gob.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&height); err != nil {
		return 0, err
	}

	return height, nil
}

func (s *Storage) get(key []byte) ([]byte, error) {
	data, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func blockKey(hash string) []byte {
	return []byte(blockPrefix + hash)
}

func encodeHeight(height uint64) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// serializeBlock serializes a block to bytes
func serializeBlock(block *types.Block) ([]byte, error) {
	var buf bytes.Buffer
	record := blockRecord{
		Header:       block.Header(),
		Transactions: block.Transactions(),
		Hash:         block.Hash(),
	}
	if err := gob.NewEncoder(&buf).Encode(record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeBlock deserializes bytes to a block
func deserializeBlock(data []byte) (*types.Block, error) {
	var record blockRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&record); err != nil {
		return nil, err
	}
	return types.RestoreBlock(record.Header, record.Transactions, record.Hash), nil
}
