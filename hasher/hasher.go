// Package hasher defines the hash capability shared by the commitment
// scheme, the Merkle accumulator and the faucet proof-of-work, with two
// interchangeable engines: an algebraic hash operating natively on field
// elements (circuit-compatible) and a generic blake2b-256 hash.
//
// A deployment pins exactly one engine for commitments, nullifiers and
// tree hashing; the two are not interchangeable mid-tree.
package hasher

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/lumenyx-chain/lumenyx/field"
)

// Digest is a 32-byte hash output. For the algebraic engine it is the
// canonical big-endian encoding of a field element; for the generic engine
// it has no field structure.
type Digest [32]byte

// Zero is the sentinel digest for a missing leaf
var Zero Digest

// Engine hashes digests pairwise (tree nodes) or in sequence (commitment
// and nullifier derivation). Input order is part of the protocol.
type Engine interface {
	HashPair(left, right Digest) (Digest, error)
	HashMany(inputs ...Digest) (Digest, error)
}

// Algebraic is the field-native engine: starting from zero, for each input
// in order, state += input; state = state^5; state += 1-based position.
// The exact sequence is re-implemented by the proving circuit and the
// on-chain verifier and must not change independently of them.
type Algebraic struct{}

// HashFelts hashes field elements directly, without an encoding round-trip
func (Algebraic) HashFelts(inputs ...field.Element) field.Element {
	var state field.Element
	for i, in := range inputs {
		state = field.Add(state, in)
		state = field.Exp5(state)
		state = field.Add(state, field.FromUint64(uint64(i+1)))
	}
	return state
}

func (a Algebraic) HashMany(inputs ...Digest) (Digest, error) {
	felts := make([]field.Element, len(inputs))
	for i, in := range inputs {
		e, err := field.DecodeBE(in[:])
		if err != nil {
			return Digest{}, fmt.Errorf("failed to decode hash input %d: %w", i, err)
		}
		felts[i] = e
	}
	return Digest(field.EncodeBE(a.HashFelts(felts...))), nil
}

func (a Algebraic) HashPair(left, right Digest) (Digest, error) {
	return a.HashMany(left, right)
}

// Generic is the blake2b-256 engine over concatenated raw bytes
type Generic struct{}

func (Generic) HashMany(inputs ...Digest) (Digest, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to create blake2b hasher: %w", err)
	}
	for _, in := range inputs {
		h.Write(in[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (g Generic) HashPair(left, right Digest) (Digest, error) {
	return g.HashMany(left, right)
}

// Sum256 is the raw blake2b-256 hash used by the faucet proof-of-work
func Sum256(data []byte) Digest {
	return Digest(blake2b.Sum256(data))
}
