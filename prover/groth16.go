package prover

import (
	"bytes"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/circuits"
	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/logger"
)

// Groth16 proves spends with gnark's Groth16 backend over BN254
type Groth16 struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// compile builds the constraint system for the pinned tree depth
func compile() (constraint.ConstraintSystem, error) {
	var circuit circuits.SpendCircuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to compile spend circuit: %w", err)
	}
	return ccs, nil
}

// Setup runs the trusted setup and returns a ready prover. The verifying
// key is what gets deployed on-chain.
func Setup() (*Groth16, error) {
	ccs, err := compile()
	if err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Info().Int("constraints", ccs.GetNbConstraints()).Msg("running trusted setup")

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to run trusted setup: %w", err)
	}
	return &Groth16{ccs: ccs, pk: pk, vk: vk}, nil
}

// SaveKeys writes the proving and verifying keys to files
func (g *Groth16) SaveKeys(pkPath, vkPath string) error {
	var buf bytes.Buffer
	if _, err := g.pk.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize proving key: %w", err)
	}
	if err := os.WriteFile(pkPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write proving key: %w", err)
	}
	buf.Reset()
	if _, err := g.vk.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize verifying key: %w", err)
	}
	if err := os.WriteFile(vkPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write verifying key: %w", err)
	}
	return nil
}

// LoadKeys recompiles the circuit and reads previously saved keys
func LoadKeys(pkPath, vkPath string) (*Groth16, error) {
	ccs, err := compile()
	if err != nil {
		return nil, err
	}
	pkBytes, err := os.ReadFile(pkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read proving key: %w", err)
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(pkBytes)); err != nil {
		return nil, fmt.Errorf("failed to parse proving key: %w", err)
	}
	vkBytes, err := os.ReadFile(vkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("failed to parse verifying key: %w", err)
	}
	return &Groth16{ccs: ccs, pk: pk, vk: vk}, nil
}

// assignment converts a witness into the circuit's variable layout
func assignment(w *SpendWitness) (*circuits.SpendCircuit, error) {
	if w.Path == nil || len(w.Path.Siblings) != config.MerkleTreeDepth {
		return nil, fmt.Errorf("witness path must have %d levels", config.MerkleTreeDepth)
	}
	secret, err := beInt(w.Secret)
	if err != nil {
		return nil, fmt.Errorf("bad witness secret: %w", err)
	}
	blinding, err := beInt(w.Blinding)
	if err != nil {
		return nil, fmt.Errorf("bad witness blinding: %w", err)
	}
	nullifier, err := beInt(w.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("bad witness nullifier: %w", err)
	}
	root, err := beInt(w.Root)
	if err != nil {
		return nil, fmt.Errorf("bad witness root: %w", err)
	}

	a := &circuits.SpendCircuit{
		Nullifier:   nullifier,
		Root:        root,
		Amount:      w.Amount.ToBig(),
		SpentAmount: w.Amount.ToBig(),
		Secret:      secret,
		Blinding:    blinding,
	}
	for i := 0; i < config.MerkleTreeDepth; i++ {
		sib, err := beInt(w.Path.Siblings[i])
		if err != nil {
			return nil, fmt.Errorf("bad witness path level %d: %w", i, err)
		}
		a.Path[i] = sib
		if w.Path.IsRight[i] {
			a.PathIsRight[i] = 1
		} else {
			a.PathIsRight[i] = 0
		}
	}
	return a, nil
}

// ProveSpend generates an opaque Groth16 proof for the witness
func (g *Groth16) ProveSpend(w *SpendWitness) ([]byte, error) {
	a, err := assignment(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvingFailure, err)
	}
	witness, err := frontend.NewWitness(a, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvingFailure, err)
	}
	proof, err := groth16.Prove(g.ccs, g.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvingFailure, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvingFailure, err)
	}
	return buf.Bytes(), nil
}

// VerifySpend checks an opaque proof against its public inputs. The
// ledger's verifier performs the same check on-chain; this one backs tests
// and the in-process devnet ledger.
func (g *Groth16) VerifySpend(proofBytes []byte, nullifier, root hasher.Digest, amount *uint256.Int) error {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("failed to parse proof: %w", err)
	}
	n, err := beInt(nullifier)
	if err != nil {
		return fmt.Errorf("bad public nullifier: %w", err)
	}
	r, err := beInt(root)
	if err != nil {
		return fmt.Errorf("bad public root: %w", err)
	}
	pub := &circuits.SpendCircuit{
		Nullifier: n,
		Root:      r,
		Amount:    amount.ToBig(),
	}
	pubWitness, err := frontend.NewWitness(pub, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to build public witness: %w", err)
	}
	if err := groth16.Verify(proof, g.vk, pubWitness); err != nil {
		return fmt.Errorf("proof rejected: %w", err)
	}
	return nil
}
