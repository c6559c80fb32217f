package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"

	"github.com/yourusername/powledger/internal/blockchain"
	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/logging"
)

func main() {
	difficulty := flag.Int("difficulty", blockchain.DefaultDifficulty, "Leading hex zeros required in every block hash")
	algorithm := flag.String("algorithm", string(crypto.DefaultAlgorithm), "Hash algorithm ("+joinAlgorithms()+")")
	workers := flag.Int("workers", 1, "Parallel mining workers (0 = NumCPU)")
	verbose := flag.Bool("v", false, "Log chain events to stderr")
	flag.Parse()

	header := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed, color.Bold)

	alg, err := crypto.ParseAlgorithm(*algorithm)
	if err != nil {
		log.Fatalf("Invalid algorithm: %v", err)
	}

	cfg := blockchain.DefaultConfig()
	cfg.Difficulty = *difficulty
	cfg.Algorithm = alg
	cfg.Workers = *workers

	var opts []blockchain.Option
	if *verbose {
		logger, err := logging.New(logging.Config{Level: "debug", Format: "console"})
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		opts = append(opts, blockchain.WithLogger(logger))
	}

	header.Println("🚀 Starting proof-of-work ledger demo")
	fmt.Println(strings.Repeat("=", 50))

	ctx := context.Background()
	bc, err := blockchain.NewBlockchain(ctx, cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create blockchain: %v", err)
	}
	fmt.Printf("  Difficulty: %d\n", bc.Difficulty())
	fmt.Printf("  Algorithm:  %s\n", bc.Algorithm())
	fmt.Printf("  Genesis:    %s\n\n", bc.Tip().Hash())

	rounds := [][]string{
		{"Alice pays Bob 1 BTC", "Bob pays Charlie 0.5 BTC"},
		{"Charlie pays Dave 0.2 BTC"},
	}
	for _, txs := range rounds {
		for _, payload := range txs {
			bc.AddTransaction(payload)
			fmt.Printf("📤 Transaction queued: %s\n", payload)
		}

		fmt.Println("⛏️  Mining...")
		index, mined, err := bc.Mine(ctx)
		if err != nil {
			log.Fatalf("Failed to mine: %v", err)
		}
		if !mined {
			fmt.Println("Nothing to mine")
			continue
		}
		block, err := bc.GetBlock(index)
		if err != nil {
			log.Fatalf("Failed to read block %d: %v", index, err)
		}
		ok.Printf("✓ Block %d mined - Hash: %s (nonce %d)\n\n", index, block.Hash(), block.Nonce())
	}

	fmt.Println("🔍 Validating blockchain...")
	if err := bc.Validate(); err != nil {
		fail.Printf("✗ Blockchain is invalid: %v\n", err)
	} else {
		ok.Println("✓ Blockchain is valid!")
	}

	printChain(bc, header)
}

func printChain(bc *blockchain.Blockchain, header *color.Color) {
	fmt.Println()
	header.Println("=== Blockchain ===")
	dim := color.New(color.Faint)
	for _, block := range bc.Blocks() {
		fmt.Printf("\nBlock %d\n", block.Index())
		fmt.Printf("  Timestamp: %s\n", block.Timestamp().Format("2006-01-02 15:04:05.000"))
		fmt.Printf("  Prev:      %s\n", block.PrevHash())
		fmt.Printf("  Hash:      %s\n", block.Hash())
		fmt.Printf("  Nonce:     %d\n", block.Nonce())
		if block.TxCount() == 0 {
			dim.Println("  (no transactions)")
			continue
		}
		for _, payload := range block.Transactions() {
			fmt.Printf("  - %s\n", payload)
		}
	}
}

func joinAlgorithms() string {
	names := make([]string, 0, len(crypto.Algorithms()))
	for _, alg := range crypto.Algorithms() {
		names = append(names, alg.String())
	}
	return strings.Join(names, ", ")
}
