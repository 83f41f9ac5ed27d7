package circuits

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/merkle"
	"github.com/lumenyx-chain/lumenyx/notes"
)

func bigOf(t *testing.T, d hasher.Digest) *big.Int {
	t.Helper()
	e, err := field.DecodeBE(d[:])
	if err != nil {
		t.Fatal(err)
	}
	return e.BigInt(new(big.Int))
}

// buildAssignment derives a note, inserts it into the production-depth
// tree alongside a second commitment and fills the circuit variables from
// the resulting path.
func buildAssignment(t *testing.T) *SpendCircuit {
	t.Helper()
	cfg := config.DefaultTree()
	amount := uint256.NewInt(1000)
	secret := hasher.Digest(field.EncodeBE(field.FromUint64(7)))
	blinding := hasher.Digest(field.EncodeBE(field.FromUint64(9)))

	commitment, nullifier, err := notes.Derive(cfg.Engine, amount, secret, blinding)
	if err != nil {
		t.Fatal(err)
	}
	other := hasher.Digest(field.EncodeBE(field.FromUint64(42)))
	tree, err := merkle.Build([]hasher.Digest{commitment, other}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	path, err := tree.Path(0)
	if err != nil {
		t.Fatal(err)
	}

	a := &SpendCircuit{
		Nullifier:   bigOf(t, nullifier),
		Root:        bigOf(t, tree.Root()),
		Amount:      amount.ToBig(),
		SpentAmount: amount.ToBig(),
		Secret:      bigOf(t, secret),
		Blinding:    bigOf(t, blinding),
	}
	for i := 0; i < cfg.Depth; i++ {
		a.Path[i] = bigOf(t, path.Siblings[i])
		if path.IsRight[i] {
			a.PathIsRight[i] = 1
		} else {
			a.PathIsRight[i] = 0
		}
	}
	return a
}

func TestSpendCircuit(t *testing.T) {
	assignment := buildAssignment(t)
	if err := test.IsSolved(&SpendCircuit{}, assignment, ecc.BN254.ScalarField()); err != nil {
		t.Fatal(err)
	}
}

func TestSpendCircuitRejectsWrongNullifier(t *testing.T) {
	assignment := buildAssignment(t)
	assignment.Nullifier = big.NewInt(12345)
	if err := test.IsSolved(&SpendCircuit{}, assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatal("expected unsatisfied constraint")
	}
}

func TestSpendCircuitRejectsWrongAmount(t *testing.T) {
	assignment := buildAssignment(t)
	assignment.Amount = big.NewInt(999)
	if err := test.IsSolved(&SpendCircuit{}, assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatal("expected unsatisfied constraint")
	}
}

func TestSpendCircuitRejectsTamperedPath(t *testing.T) {
	assignment := buildAssignment(t)
	assignment.Path[0] = big.NewInt(1)
	if err := test.IsSolved(&SpendCircuit{}, assignment, ecc.BN254.ScalarField()); err == nil {
		t.Fatal("expected unsatisfied constraint")
	}
}
