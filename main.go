package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/deployed"
	"github.com/lumenyx-chain/lumenyx/ledger"
	"github.com/lumenyx-chain/lumenyx/logger"
	"github.com/lumenyx-chain/lumenyx/notes"
	"github.com/lumenyx-chain/lumenyx/pool"
	"github.com/lumenyx-chain/lumenyx/prover"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println(helpString())
		os.Exit(1)
	}

	command := os.Args[1]
	networkName := os.Args[2]
	args := os.Args[3:]

	var network deployed.Network
	switch networkName {
	case "mainnet":
		network = deployed.MainNet
	case "local":
		network = deployed.Local
	default:
		fmt.Printf("Invalid network: %s\n", networkName)
		fmt.Println("Valid networks are: mainnet, local")
		os.Exit(1)
	}

	logFile := initializeLog(network)
	defer logFile.Close()

	ctx := context.Background()

	if command == "setup" {
		runSetup()
		return
	}

	client, err := ledger.Dial(ctx, network.URL())
	if err != nil {
		fatal(err)
	}
	g, err := prover.LoadKeys(pkPath(), vkPath())
	if err != nil {
		fatal(fmt.Errorf("no proving keys found, run setup first: %w", err))
	}
	frontend := pool.NewFrontend(client, g, deployed.NotesDirPath())

	switch command {
	case "shield":
		// shield <network> <signer-address> <amount-lumenyx>
		requireArgs(args, 2)
		amount, err := tokensToPlanck(args[1])
		if err != nil {
			fatal(err)
		}
		if _, err := frontend.Shield(ctx, args[0], amount); err != nil {
			fatal(err)
		}
	case "unshield":
		// unshield <network> <signer-address> <note-file> [recipient]
		requireArgs(args, 2)
		note, err := loadNote(args[1])
		if err != nil {
			fatal(err)
		}
		recipient := ""
		if len(args) > 2 {
			recipient = args[2]
		}
		if _, err := frontend.Unshield(ctx, args[0], note, recipient); err != nil {
			fatal(err)
		}
	case "transfer":
		// transfer <network> <signer-address> <note-file>
		requireArgs(args, 2)
		note, err := loadNote(args[1])
		if err != nil {
			fatal(err)
		}
		if _, err := frontend.Transfer(ctx, args[0], note); err != nil {
			fatal(err)
		}
	case "claim-faucet":
		// claim-faucet <network> <target-address> <pubkey-hex>
		requireArgs(args, 2)
		pubkey, err := hex.DecodeString(args[1])
		if err != nil || len(pubkey) != 32 {
			fatal(fmt.Errorf("pubkey must be 32 bytes of hex"))
		}
		if _, err := frontend.ClaimFaucet(ctx, args[0], pubkey); err != nil {
			fatal(err)
		}
	case "path":
		// path <network> <leaf-index> [output-file]
		requireArgs(args, 1)
		index, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid leaf index: %s", args[0]))
		}
		out := "merkle_path.json"
		if len(args) > 1 {
			out = args[1]
		}
		if _, err := frontend.ExportPath(ctx, index, out); err != nil {
			fatal(err)
		}
	default:
		fmt.Printf("Invalid command: %s\n", command)
		fmt.Println(helpString())
		os.Exit(1)
	}
}

func runSetup() {
	g, err := prover.Setup()
	if err != nil {
		fatal(err)
	}
	if err := os.MkdirAll(deployed.KeysDirPath(), 0700); err != nil {
		fatal(err)
	}
	if err := g.SaveKeys(pkPath(), vkPath()); err != nil {
		fatal(err)
	}
	fmt.Printf("Keys written to %s\n", deployed.KeysDirPath())
}

func pkPath() string { return filepath.Join(deployed.KeysDirPath(), "proving_key.bin") }
func vkPath() string { return filepath.Join(deployed.KeysDirPath(), "verification_key.bin") }

// loadNote reads a plaintext or password-sealed note file
func loadNote(path string) (*notes.Note, error) {
	if filepath.Ext(path) == ".enc" {
		return notes.LoadEncrypted(path)
	}
	return notes.Load(path)
}

// tokensToPlanck converts a whole-token amount to planck
func tokensToPlanck(s string) (*uint256.Int, error) {
	tokens, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	amount, overflow := new(uint256.Int).MulOverflow(tokens, uint256.NewInt(config.PlanckPerLumenyx))
	if overflow {
		return nil, fmt.Errorf("amount %s too large", s)
	}
	return amount, nil
}

func requireArgs(args []string, n int) {
	if len(args) < n {
		fmt.Println(helpString())
		os.Exit(1)
	}
}

func fatal(err error) {
	log := logger.Logger()
	log.Error().Err(err).Msg("command failed")
	os.Exit(1)
}

// helpString returns the help string for the command line interface
func helpString() string {
	help := "Usage: <command> <network> [args...]\n"
	help += "Commands:\n"
	help += "  setup\n"
	help += "  shield       <signer> <amount>\n"
	help += "  unshield     <signer> <note-file> [recipient]\n"
	help += "  transfer     <signer> <note-file>\n"
	help += "  claim-faucet <target> <pubkey-hex>\n"
	help += "  path         <leaf-index> [output-file]\n"
	help += "Networks: mainnet, local\n"
	return help
}

// initializeLog sends log output to both the console and the network's
// log file. It returns the log file.
func initializeLog(network deployed.Network) *os.File {
	logFilePath := network.LogFilePath()
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0700); err != nil {
		fatal(err)
	}
	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fatal(err)
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	multi := io.MultiWriter(console, logFile)
	logger.Set(zerolog.New(multi).With().Timestamp().Logger())
	return logFile
}
