// Package deployed knows where the supported networks live and where
// local client state (notes, keys, logs) is kept
package deployed

import (
	"os"
	"path/filepath"
)

type Network int

const (
	MainNet Network = iota
	Local
)

func (n Network) String() string {
	return [...]string{"mainnet", "local"}[n]
}

// URL returns the node RPC endpoint for the network. The LUMENYX_RPC_URL
// environment variable overrides it.
func (n Network) URL() string {
	if url := os.Getenv("LUMENYX_RPC_URL"); url != "" {
		return url
	}
	return [...]string{
		"ws://89.147.111.102:9944",
		"ws://127.0.0.1:9944",
	}[n]
}

func (n Network) LogFilePath() string {
	return filepath.Join(baseDir(), n.String()+".log")
}

// NotesDirPath is where shielded note files are stored
func NotesDirPath() string {
	return filepath.Join(homeDir(), ".lumenyx-notes")
}

// KeysDirPath holds the Groth16 proving and verifying keys
func KeysDirPath() string {
	return filepath.Join(baseDir(), "keys")
}

func baseDir() string {
	return filepath.Join(homeDir(), ".lumenyx")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
