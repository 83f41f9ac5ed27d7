// Package circuits defines the zk-circuit proving ownership of an unspent
// note in the shielded pool
package circuits

import (
	"github.com/consensys/gnark/frontend"

	"github.com/lumenyx-chain/lumenyx/config"
)

// SpendCircuit proves, without revealing which leaf is spent, that the
// prover knows (amount, secret, blinding) whose commitment sits in the
// tree under Root, and that Nullifier is derived from that commitment.
// Public inputs must match the on-chain verifier: nullifier, root, amount.
type SpendCircuit struct {
	Nullifier frontend.Variable `gnark:",public"`
	Root      frontend.Variable `gnark:",public"`
	Amount    frontend.Variable `gnark:",public"`

	SpentAmount frontend.Variable
	Secret      frontend.Variable
	Blinding    frontend.Variable
	Path        [config.MerkleTreeDepth]frontend.Variable
	PathIsRight [config.MerkleTreeDepth]frontend.Variable
}

func (c *SpendCircuit) Define(api frontend.API) error {
	// commitment = H(amount, secret, blinding)
	commitment := poolHash(api, c.SpentAmount, c.Secret, c.Blinding)

	// membership: path from the commitment must land on the public root
	root := merkleRoot(api, commitment, c.Path[:], c.PathIsRight[:])
	api.AssertIsEqual(root, c.Root)

	// nullifier = H(commitment, secret)
	api.AssertIsEqual(poolHash(api, commitment, c.Secret), c.Nullifier)

	// the unshielded amount is exactly the note's amount
	api.AssertIsEqual(c.SpentAmount, c.Amount)

	return nil
}
