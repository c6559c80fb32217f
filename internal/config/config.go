package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/powledger/internal/blockchain"
	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/logging"
)

// Config is the node configuration file
type Config struct {
	Chain ChainConfig    `yaml:"chain"`
	Log   logging.Config `yaml:"log"`
	RPC   RPCConfig      `yaml:"rpc"`
}

type ChainConfig struct {
	Difficulty  int    `yaml:"difficulty"`
	Algorithm   string `yaml:"algorithm"`
	MaxAttempts uint64 `yaml:"max_attempts"`
	Workers     int    `yaml:"workers"`
}

type RPCConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	MineTimeout    time.Duration `yaml:"mine_timeout"`
	AutoMine       bool          `yaml:"auto_mine"`
	MiningInterval time.Duration `yaml:"mining_interval"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	chain := blockchain.DefaultConfig()
	return Config{
		Chain: ChainConfig{
			Difficulty:  chain.Difficulty,
			Algorithm:   string(chain.Algorithm),
			MaxAttempts: chain.MaxAttempts,
			Workers:     chain.Workers,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
		RPC: RPCConfig{
			ListenAddr:     ":50051",
			MineTimeout:    time.Minute,
			AutoMine:       false,
			MiningInterval: 5 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section
func (c Config) Validate() error {
	chain, err := c.Chain.Blockchain()
	if err != nil {
		return err
	}
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if c.RPC.ListenAddr == "" {
		return errors.New("rpc: listen_addr is required")
	}
	if c.RPC.MineTimeout < 0 {
		return errors.New("rpc: mine_timeout must not be negative")
	}
	if c.RPC.AutoMine && c.RPC.MiningInterval <= 0 {
		return errors.New("rpc: mining_interval must be positive when auto_mine is set")
	}
	return nil
}

// Blockchain converts the chain section into a blockchain.Config
func (c ChainConfig) Blockchain() (blockchain.Config, error) {
	alg, err := crypto.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return blockchain.Config{}, fmt.Errorf("chain: %w", err)
	}
	return blockchain.Config{
		Difficulty:  c.Difficulty,
		Algorithm:   alg,
		MaxAttempts: c.MaxAttempts,
		Workers:     c.Workers,
	}, nil
}
