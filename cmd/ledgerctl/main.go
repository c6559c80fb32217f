package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/yourusername/powledger/internal/blockchain"
	"github.com/yourusername/powledger/internal/crypto"
	"github.com/yourusername/powledger/internal/grpc"
	"github.com/yourusername/powledger/internal/pow"
	"github.com/yourusername/powledger/pkg/types"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "Ledger node address")
	timeout := flag.Duration("timeout", time.Minute, "Request timeout")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := grpc.Dial(ctx, *addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := runCommand(ctx, client, args[0], args[1:]); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, client *grpc.Client, cmd string, args []string) error {
	switch cmd {
	case "submit":
		if len(args) == 0 {
			return fmt.Errorf("submit requires at least one payload")
		}
		for _, payload := range args {
			pending, err := client.SubmitTransaction(ctx, payload)
			if err != nil {
				return err
			}
			fmt.Printf("📤 Queued %q (%d pending)\n", payload, pending)
		}
		return nil

	case "mine":
		resp, err := client.Mine(ctx)
		if err != nil {
			return err
		}
		if !resp.Mined {
			fmt.Println("Nothing to mine")
			return nil
		}
		color.Green("✓ Block %d mined - Hash: %s", resp.Index, resp.Block.Hash)
		return nil

	case "validate":
		resp, err := client.Validate(ctx)
		if err != nil {
			return err
		}
		if resp.Valid {
			color.Green("✓ Blockchain is valid")
		} else {
			color.Red("✗ Invalid block at position %d: %s", resp.BlockIndex, resp.Reason)
		}
		return nil

	case "verify":
		return verifyLocally(ctx, client)

	case "chain":
		resp, err := client.GetChain(ctx, 0, 0)
		if err != nil {
			return err
		}
		for _, block := range resp.Blocks {
			printBlock(block)
		}
		return nil

	case "block":
		if len(args) != 1 {
			return fmt.Errorf("block requires an index or hash")
		}
		var (
			block *grpc.Block
			err   error
		)
		if index, perr := strconv.ParseUint(args[0], 10, 64); perr == nil {
			block, err = client.GetBlockByIndex(ctx, index)
		} else {
			block, err = client.GetBlockByHash(ctx, args[0])
		}
		if err != nil {
			return err
		}
		printBlock(block)
		return printProof(ctx, client, block)

	case "info":
		info, err := client.GetInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Height:     %d\n", info.Height)
		fmt.Printf("Tip:        %s\n", info.TipHash)
		fmt.Printf("Difficulty: %d\n", info.Difficulty)
		fmt.Printf("Algorithm:  %s\n", info.Algorithm)
		fmt.Printf("Pending:    %d\n", info.Pending)
		return nil

	case "pending":
		txs, err := client.GetPending(ctx)
		if err != nil {
			return err
		}
		for _, payload := range txs {
			fmt.Println(payload)
		}
		return nil

	case "mining":
		return runMining(ctx, client, args)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runMining(ctx context.Context, client *grpc.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("mining requires start, stop or status")
	}

	switch args[0] {
	case "start":
		startCmd := flag.NewFlagSet("mining start", flag.ExitOnError)
		interval := startCmd.Duration("interval", 0, "Mining interval (0 keeps the node default)")
		startCmd.Parse(args[1:])

		started, err := client.StartMining(ctx, interval.Milliseconds())
		if err != nil {
			return err
		}
		if started {
			color.Green("⛏️  Background mining started")
		} else {
			fmt.Println("Background mining already running")
		}
	case "stop":
		stopped, err := client.StopMining(ctx)
		if err != nil {
			return err
		}
		if stopped {
			fmt.Println("Background mining stopped")
		} else {
			fmt.Println("Background mining was not running")
		}
	case "status":
		info, err := client.GetMiningInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Mining:       %v\n", info.IsMining)
		fmt.Printf("Blocks mined: %d\n", info.BlocksMined)
		fmt.Printf("Interval:     %s\n", time.Duration(info.IntervalMs)*time.Millisecond)
	default:
		return fmt.Errorf("unknown mining command %q", args[0])
	}
	return nil
}

// verifyLocally downloads the chain and re-checks it without trusting the node
func verifyLocally(ctx context.Context, client *grpc.Client) error {
	info, err := client.GetInfo(ctx)
	if err != nil {
		return err
	}
	alg, err := crypto.ParseAlgorithm(info.Algorithm)
	if err != nil {
		return err
	}

	resp, err := client.GetChain(ctx, 0, 0)
	if err != nil {
		return err
	}
	blocks := make([]*types.Block, len(resp.Blocks))
	for i, block := range resp.Blocks {
		blocks[i] = block.ToBlock()
	}

	if err := blockchain.ValidateBlocks(blocks, info.Difficulty, alg); err != nil {
		color.Red("✗ %v", err)
		return nil
	}
	color.Green("✓ %d blocks verified locally", len(blocks))
	return nil
}

// printProof re-checks a single block's hash and work against the node's rules
func printProof(ctx context.Context, client *grpc.Client, block *grpc.Block) error {
	info, err := client.GetInfo(ctx)
	if err != nil {
		return err
	}
	alg, err := crypto.ParseAlgorithm(info.Algorithm)
	if err != nil {
		return err
	}

	if pow.Validate(block.ToBlock(), info.Difficulty, alg) {
		color.Green("  Proof:     valid (%s, difficulty %d)", alg, info.Difficulty)
	} else {
		color.Red("  Proof:     INVALID (%s, difficulty %d)", alg, info.Difficulty)
	}
	return nil
}

func printBlock(block *grpc.Block) {
	color.New(color.FgCyan, color.Bold).Printf("\nBlock %d\n", block.Index)
	fmt.Printf("  Timestamp: %s\n", block.Timestamp.Format(time.RFC3339Nano))
	fmt.Printf("  Prev:      %s\n", block.PrevHash)
	fmt.Printf("  Hash:      %s\n", block.Hash)
	fmt.Printf("  Nonce:     %d\n", block.Nonce)
	if len(block.Transactions) > 0 {
		fmt.Printf("  Transactions:\n    %s\n", strings.Join(block.Transactions, "\n    "))
	}
}

func printUsage() {
	fmt.Println("Ledger node client")
	fmt.Println("\nUsage:")
	fmt.Println("  ledgerctl [-addr host:port] <command> [args]")
	fmt.Println("\nCommands:")
	fmt.Println("  submit <payload>...                Queue transactions")
	fmt.Println("  mine                               Mine pending transactions into a block")
	fmt.Println("  validate                           Ask the node to validate its chain")
	fmt.Println("  verify                             Download the chain and validate it locally")
	fmt.Println("  chain                              Print every block")
	fmt.Println("  block <index|hash>                 Print one block")
	fmt.Println("  info                               Show chain information")
	fmt.Println("  pending                            List pending transactions")
	fmt.Println("  mining start [-interval 5s]        Start the background miner")
	fmt.Println("  mining stop                        Stop the background miner")
	fmt.Println("  mining status                      Show background miner state")
}
