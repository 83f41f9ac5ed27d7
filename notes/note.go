// Package notes manages the witness bundle a holder keeps for every
// shielded deposit: the secret material, the derived commitment and
// nullifier, and the assigned leaf index. A note is created once at shield
// time and never mutated backward; once its nullifier is recorded as spent
// the record stays on disk but is dead.
package notes

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
)

// State is the lifecycle position of a note. Transitions are forward-only:
// Drafted -> Shielded -> Spent.
type State string

const (
	Drafted  State = "drafted"
	Shielded State = "shielded"
	Spent    State = "spent"
)

var ErrBackwardTransition = errors.New("note state cannot move backward")

// Note represents a deposit in the shielded pool, stored in the tree as
// Commitment
type Note struct {
	Amount     *uint256.Int // planck
	Secret     hasher.Digest
	Blinding   hasher.Digest
	Commitment hasher.Digest
	Nullifier  hasher.Digest

	// LeafIndex is -1 until the ledger assigns a position, immutable after
	LeafIndex int
	// Root is the tree root observed at creation, informational only
	Root  hasher.Digest
	State State
}

// Derive computes commitment = H(amount, secret, blinding) and
// nullifier = H(commitment, secret). Argument order and count are part of
// the protocol; the circuit and the on-chain verifier recompute the same
// sequence.
func Derive(engine hasher.Engine, amount *uint256.Int, secret, blinding hasher.Digest) (commitment, nullifier hasher.Digest, err error) {
	amt, err := field.FromAmount(amount)
	if err != nil {
		return hasher.Digest{}, hasher.Digest{}, err
	}
	commitment, err = engine.HashMany(hasher.Digest(field.EncodeBE(amt)), secret, blinding)
	if err != nil {
		return hasher.Digest{}, hasher.Digest{}, fmt.Errorf("failed to derive commitment: %w", err)
	}
	nullifier, err = engine.HashMany(commitment, secret)
	if err != nil {
		return hasher.Digest{}, hasher.Digest{}, fmt.Errorf("failed to derive nullifier: %w", err)
	}
	return commitment, nullifier, nil
}

// NewSecret draws fresh secret material for the given hash mode: a uniform
// field element in algebraic mode, uniform 32 bytes in generic mode.
// A secret is never reused across notes.
func NewSecret(mode config.HashMode) (hasher.Digest, error) {
	if mode == config.HashModeGeneric {
		var d hasher.Digest
		if _, err := rand.Read(d[:]); err != nil {
			return hasher.Digest{}, fmt.Errorf("failed to read random bytes: %w", err)
		}
		return d, nil
	}
	e, err := field.Random()
	if err != nil {
		return hasher.Digest{}, err
	}
	return hasher.Digest(field.EncodeBE(e)), nil
}

// NewNote drafts a note for the given amount with fresh secret and
// blinding. The draft holds no on-chain state; if submission fails it can
// be discarded, or resubmitted unchanged when the first submission is
// known not to have landed (the commitment is deterministic).
func NewNote(mode config.HashMode, amount *uint256.Int) (*Note, error) {
	secret, err := NewSecret(mode)
	if err != nil {
		return nil, err
	}
	blinding, err := NewSecret(mode)
	if err != nil {
		return nil, err
	}
	commitment, nullifier, err := Derive(mode.Engine(), amount, secret, blinding)
	if err != nil {
		return nil, err
	}
	return &Note{
		Amount:     amount.Clone(),
		Secret:     secret,
		Blinding:   blinding,
		Commitment: commitment,
		Nullifier:  nullifier,
		LeafIndex:  -1,
		State:      Drafted,
	}, nil
}

// MarkShielded records the leaf index assigned by the ledger and the root
// it published
func (n *Note) MarkShielded(leafIndex int, root hasher.Digest) error {
	if n.State != Drafted {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, n.State, Shielded)
	}
	n.LeafIndex = leafIndex
	n.Root = root
	n.State = Shielded
	return nil
}

// MarkSpent marks the note dead. Terminal; the record is kept but the note
// must never be submitted again.
func (n *Note) MarkSpent() error {
	if n.State != Shielded {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, n.State, Spent)
	}
	n.State = Spent
	return nil
}

// fileNote is the persisted form: amounts in decimal planck, 32-byte
// values as 0x-prefixed big-endian hex (the storage convention)
type fileNote struct {
	Amount     string `json:"amount"`
	Secret     string `json:"secret"`
	Blinding   string `json:"blinding"`
	Commitment string `json:"commitment"`
	Nullifier  string `json:"nullifier"`
	LeafIndex  int    `json:"leaf_index"`
	Root       string `json:"root,omitempty"`
	State      State  `json:"state"`
}

// FileName returns the canonical file name for the note
func (n *Note) FileName() string {
	return fmt.Sprintf("note_%d.json", n.LeafIndex)
}

// Save writes the note as JSON into dir, creating dir if needed
func (n *Note) Save(dir string) (string, error) {
	data, err := n.MarshalJSON()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create notes dir: %w", err)
	}
	path := filepath.Join(dir, n.FileName())
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write note file: %w", err)
	}
	return path, nil
}

func (n *Note) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(fileNote{
		Amount:     n.Amount.Dec(),
		Secret:     field.StorageBytes(n.Secret).Hex(),
		Blinding:   field.StorageBytes(n.Blinding).Hex(),
		Commitment: field.StorageBytes(n.Commitment).Hex(),
		Nullifier:  field.StorageBytes(n.Nullifier).Hex(),
		LeafIndex:  n.LeafIndex,
		Root:       field.StorageBytes(n.Root).Hex(),
		State:      n.State,
	}, "", "  ")
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var f fileNote
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse note file: %w", err)
	}
	amount, err := uint256.FromDecimal(f.Amount)
	if err != nil {
		return fmt.Errorf("failed to parse note amount: %w", err)
	}
	fields := []struct {
		name string
		hex  string
		dst  *hasher.Digest
	}{
		{"secret", f.Secret, &n.Secret},
		{"blinding", f.Blinding, &n.Blinding},
		{"commitment", f.Commitment, &n.Commitment},
		{"nullifier", f.Nullifier, &n.Nullifier},
		{"root", f.Root, &n.Root},
	}
	for _, fd := range fields {
		if fd.hex == "" {
			continue
		}
		v, err := field.ParseStorageHex(fd.hex)
		if err != nil {
			return fmt.Errorf("failed to parse note %s: %w", fd.name, err)
		}
		*fd.dst = hasher.Digest(v)
	}
	n.Amount = amount
	n.LeafIndex = f.LeafIndex
	n.State = f.State
	if n.State == "" {
		n.State = Shielded
	}
	return nil
}

// Load reads a note file written by Save
func Load(path string) (*Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read note file: %w", err)
	}
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
