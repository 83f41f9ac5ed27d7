// Package config pins the protocol parameters of the deployed shielded
// pool: tree geometry, the hash engine, amount units and the faucet
// difficulty. These must match the on-chain runtime and the circuit.
package config

import (
	"github.com/lumenyx-chain/lumenyx/hasher"
)

// protocol constants
const (
	// MerkleTreeDepth is the fixed depth of the commitment tree; the pool
	// holds at most 2^depth notes
	MerkleTreeDepth = 20
	MaxNotes        = 1 << MerkleTreeDepth

	// PlanckPerLumenyx converts whole tokens to the smallest on-ledger unit
	PlanckPerLumenyx = 1_000_000_000_000

	// FaucetDifficulty is the leading-zero-bit target of the validator
	// faucet proof-of-work
	FaucetDifficulty = 18

	// FaucetAmount is what a successful faucet claim pays out, in planck
	FaucetAmount = 2 * PlanckPerLumenyx
)

// HashMode selects the engine used for commitments, nullifiers and tree
// hashing. A deployment pins one mode for its entire lifetime; mixing modes
// produces unverifiable proofs.
type HashMode int

const (
	// HashModeAlgebraic is the field-native hash the proving circuit
	// implements. This is the supported protocol version.
	HashModeAlgebraic HashMode = iota
	// HashModeGeneric is the blake2b-256 tree variant used by early
	// revisions of the chain. Kept for auditing old roots only.
	HashModeGeneric
)

func (m HashMode) String() string {
	if m == HashModeGeneric {
		return "generic"
	}
	return "algebraic"
}

// Engine returns the hash engine for the mode
func (m HashMode) Engine() hasher.Engine {
	if m == HashModeGeneric {
		return hasher.Generic{}
	}
	return hasher.Algebraic{}
}

type TreeConfig struct {
	Depth      int
	Mode       HashMode
	Engine     hasher.Engine
	ZeroHashes []hasher.Digest // empty-subtree hash per level, [0] = leaf sentinel
}

// NewTreeConfig precomputes the empty-subtree hashes for the given mode
func NewTreeConfig(depth int, mode HashMode) TreeConfig {
	engine := mode.Engine()
	return TreeConfig{
		Depth:      depth,
		Mode:       mode,
		Engine:     engine,
		ZeroHashes: GenerateZeroHashes(depth, engine),
	}
}

// DefaultTree returns the pinned production configuration
func DefaultTree() TreeConfig {
	return NewTreeConfig(MerkleTreeDepth, HashModeAlgebraic)
}

// GenerateZeroHashes returns depth+1 hashes where entry L is the root of a
// fully empty subtree of height L: entry 0 is the all-zero leaf sentinel
// and entry L is HashPair applied to two copies of entry L-1.
func GenerateZeroHashes(depth int, engine hasher.Engine) []hasher.Digest {
	zh := make([]hasher.Digest, depth+1)
	zh[0] = hasher.Zero
	for i := 1; i <= depth; i++ {
		h, err := engine.HashPair(zh[i-1], zh[i-1])
		if err != nil {
			// the zero sentinel is always canonical
			panic(err)
		}
		zh[i] = h
	}
	return zh
}
