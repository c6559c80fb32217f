package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yourusername/powledger/internal/blockchain"
	"github.com/yourusername/powledger/internal/config"
	"github.com/yourusername/powledger/internal/grpc"
	"github.com/yourusername/powledger/internal/logging"
	"github.com/yourusername/powledger/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	grpcAddr := flag.String("grpc", "", "gRPC server address (overrides config)")
	difficulty := flag.Int("difficulty", -1, "Difficulty (overrides config)")
	autoMine := flag.Bool("auto-mine", false, "Start the background miner on startup")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *grpcAddr != "" {
		cfg.RPC.ListenAddr = *grpcAddr
	}
	if *difficulty >= 0 {
		cfg.Chain.Difficulty = *difficulty
	}
	if *autoMine {
		cfg.RPC.AutoMine = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("node failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	chainCfg, err := cfg.Chain.Blockchain()
	if err != nil {
		return err
	}

	index, err := storage.NewMemory()
	if err != nil {
		return fmt.Errorf("failed to open block index: %w", err)
	}
	defer index.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bc, err := blockchain.NewBlockchain(ctx, chainCfg,
		blockchain.WithLogger(logger.Named("chain")),
		blockchain.WithIndex(index),
	)
	if err != nil {
		return fmt.Errorf("failed to create blockchain: %w", err)
	}

	chainCfg = bc.Config()
	logger.Info("blockchain initialized",
		zap.Int("height", bc.Height()),
		zap.Int("difficulty", chainCfg.Difficulty),
		zap.Stringer("algorithm", chainCfg.Algorithm),
		zap.Uint64("max_attempts", chainCfg.MaxAttempts),
		zap.Int("workers", chainCfg.Workers),
	)

	server := grpc.NewServer(bc,
		grpc.WithLogger(logger.Named("rpc")),
		grpc.WithMineTimeout(cfg.RPC.MineTimeout),
		grpc.WithMiningInterval(cfg.RPC.MiningInterval),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPC.ListenAddr)
	}()

	if cfg.RPC.AutoMine {
		server.StartMiningInternal(0)
	}

	select {
	case err := <-errCh:
		server.Stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	server.Stop()

	height, err := index.GetChainHeight()
	if err != nil {
		return fmt.Errorf("failed to read block index: %w", err)
	}
	tip, err := index.GetChainTip()
	if err != nil {
		return fmt.Errorf("failed to read block index: %w", err)
	}
	logger.Info("node stopped", zap.Uint64("indexed_blocks", height), zap.String("tip", tip))
	return nil
}
