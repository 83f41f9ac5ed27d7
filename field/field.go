// Package field provides exact arithmetic over the BN254 scalar field and
// the two 32-byte encodings used at protocol boundaries: big-endian for
// chain storage and little-endian for the proving circuit.
package field

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Bytes is the size of an encoded field element
const Bytes = fr.Bytes

// ErrNonCanonical is returned when decoding a buffer that is not exactly
// 32 bytes or encodes a value >= the field modulus. Such values are never
// silently reduced.
var ErrNonCanonical = errors.New("non-canonical field element")

// ErrAmountRange is returned for amounts wider than the 128-bit planck
// range
var ErrAmountRange = errors.New("amount exceeds 128 bits")

// Element is an integer in [0, p) where p is the BN254 scalar field modulus.
// All operations keep values in canonical reduced form.
type Element = fr.Element

// StorageBytes is the big-endian encoding published by the chain
// (commitments, nullifiers, roots in storage).
type StorageBytes [Bytes]byte

// CircuitBytes is the little-endian encoding consumed by the proving
// circuit. It is a distinct type so the two conventions cannot be mixed
// without an explicit conversion.
type CircuitBytes [Bytes]byte

// Modulus returns the field modulus as a big.Int
func Modulus() *big.Int {
	return fr.Modulus()
}

func Add(a, b Element) Element {
	var z Element
	z.Add(&a, &b)
	return z
}

func Mul(a, b Element) Element {
	var z Element
	z.Mul(&a, &b)
	return z
}

// Exp5 returns x^5, the S-box power of the algebraic hash round function
func Exp5(x Element) Element {
	var x2, x4, z Element
	x2.Square(&x)
	x4.Square(&x2)
	z.Mul(&x4, &x)
	return z
}

func FromUint64(v uint64) Element {
	var z Element
	z.SetUint64(v)
	return z
}

// FromAmount converts a planck amount to a field element. Amounts are
// 128-bit on chain, so a valid amount always fits below the 254-bit
// modulus; anything wider is rejected.
func FromAmount(amount *uint256.Int) (Element, error) {
	if amount.BitLen() > 128 {
		return Element{}, fmt.Errorf("%w: %s", ErrAmountRange, amount.Dec())
	}
	b := amount.Bytes32()
	var z Element
	z.SetBytes(b[:])
	return z, nil
}

// Random draws an element uniformly from [0, p) using crypto/rand
func Random() (Element, error) {
	var z Element
	if _, err := z.SetRandom(); err != nil {
		return Element{}, fmt.Errorf("failed to sample field element: %w", err)
	}
	return z, nil
}

// EncodeBE returns the canonical big-endian storage encoding of e
func EncodeBE(e Element) StorageBytes {
	return StorageBytes(e.Bytes())
}

// EncodeLE returns the little-endian circuit encoding of e
func EncodeLE(e Element) CircuitBytes {
	be := e.Bytes()
	var le CircuitBytes
	for i := 0; i < Bytes; i++ {
		le[i] = be[Bytes-1-i]
	}
	return le
}

// DecodeBE parses a big-endian buffer into an element. The buffer must be
// exactly 32 bytes and encode a value strictly below the modulus.
func DecodeBE(buf []byte) (Element, error) {
	if len(buf) != Bytes {
		return Element{}, fmt.Errorf("%w: got %d bytes, want %d", ErrNonCanonical, len(buf), Bytes)
	}
	var z Element
	if err := z.SetBytesCanonical(buf); err != nil {
		return Element{}, fmt.Errorf("%w: value >= modulus", ErrNonCanonical)
	}
	return z, nil
}

// DecodeLE parses a little-endian buffer into an element under the same
// canonicality rules as DecodeBE.
func DecodeLE(buf []byte) (Element, error) {
	if len(buf) != Bytes {
		return Element{}, fmt.Errorf("%w: got %d bytes, want %d", ErrNonCanonical, len(buf), Bytes)
	}
	be := make([]byte, Bytes)
	for i := 0; i < Bytes; i++ {
		be[i] = buf[Bytes-1-i]
	}
	return DecodeBE(be)
}

// ToCircuit converts the storage encoding to the circuit encoding
func (s StorageBytes) ToCircuit() CircuitBytes {
	var le CircuitBytes
	for i := 0; i < Bytes; i++ {
		le[i] = s[Bytes-1-i]
	}
	return le
}

// ToStorage converts the circuit encoding to the storage encoding
func (c CircuitBytes) ToStorage() StorageBytes {
	var be StorageBytes
	for i := 0; i < Bytes; i++ {
		be[i] = c[Bytes-1-i]
	}
	return be
}

// Hex returns the 0x-prefixed hex form used in note files and RPC calls
func (s StorageBytes) Hex() string {
	return hexutil.Encode(s[:])
}

// ParseStorageHex parses a 0x-prefixed big-endian hex string
func ParseStorageHex(s string) (StorageBytes, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return StorageBytes{}, fmt.Errorf("failed to decode hex: %w", err)
	}
	if len(raw) != Bytes {
		return StorageBytes{}, fmt.Errorf("%w: got %d bytes, want %d", ErrNonCanonical, len(raw), Bytes)
	}
	var out StorageBytes
	copy(out[:], raw)
	return out, nil
}
