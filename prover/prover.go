// Package prover is the boundary to the proving service: it turns a spend
// witness into an opaque proof byte string. The bundled implementation
// runs gnark's Groth16 backend in process; the interface keeps the
// accumulator's correctness independent of how proofs are produced.
package prover

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/merkle"
)

// ErrProvingFailure wraps any failure of the proving backend. Proving is
// deterministic given the same witness, so retrying with identical inputs
// is safe.
var ErrProvingFailure = errors.New("proving failure")

// SpendWitness is everything the proving service needs to prove ownership
// of an unspent note: the secret material, the authentication path and the
// public inputs (nullifier, root, amount). All 32-byte values are carried
// in the storage (big-endian) convention and converted at the boundary.
type SpendWitness struct {
	Amount    *uint256.Int
	Secret    hasher.Digest
	Blinding  hasher.Digest
	Path      *merkle.Path
	Nullifier hasher.Digest
	Root      hasher.Digest
}

// Prover generates spend proofs
type Prover interface {
	ProveSpend(w *SpendWitness) ([]byte, error)
}

// witnessFile is the serialization handed to an out-of-process prover:
// private field elements in the circuit (little-endian) convention,
// storage-facing public values in the storage (big-endian) convention.
// Mixing the two without conversion is a protocol bug, hence the explicit
// ToCircuit calls.
type witnessFile struct {
	Amount    string   `json:"amount"`
	Secret    string   `json:"secret_le"`
	Blinding  string   `json:"blinding_le"`
	Path      []string `json:"path_le"`
	Indices   []bool   `json:"indices"`
	Nullifier string   `json:"nullifier"`
	Root      string   `json:"root"`
}

func circuitHex(d hasher.Digest) string {
	le := field.StorageBytes(d).ToCircuit()
	return "0x" + fmt.Sprintf("%x", le[:])
}

func (w *SpendWitness) MarshalJSON() ([]byte, error) {
	f := witnessFile{
		Amount:    w.Amount.Dec(),
		Secret:    circuitHex(w.Secret),
		Blinding:  circuitHex(w.Blinding),
		Path:      make([]string, len(w.Path.Siblings)),
		Indices:   append([]bool(nil), w.Path.IsRight...),
		Nullifier: field.StorageBytes(w.Nullifier).Hex(),
		Root:      field.StorageBytes(w.Root).Hex(),
	}
	for i, sib := range w.Path.Siblings {
		f.Path[i] = circuitHex(sib)
	}
	return json.Marshal(f)
}

// beInt decodes a storage digest into the big.Int form gnark assignments
// take, rejecting non-canonical values before they reach the backend
func beInt(d hasher.Digest) (*big.Int, error) {
	e, err := field.DecodeBE(d[:])
	if err != nil {
		return nil, err
	}
	return e.BigInt(new(big.Int)), nil
}
