package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/merkle"
	"github.com/lumenyx-chain/lumenyx/pow"
)

const alice = "5Alice"
const bob = "5Bob"

func feltDigest(v uint64) hasher.Digest {
	return hasher.Digest(field.EncodeBE(field.FromUint64(v)))
}

func fundedLedger(t *testing.T, verify VerifyFunc) *MemLedger {
	t.Helper()
	m := NewMemLedger(config.NewTreeConfig(4, config.HashModeAlgebraic), verify)
	m.Fund(alice, uint256.NewInt(1000))
	return m
}

func TestShieldUpdatesRootAndBalances(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	// nothing published before the first insert
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, hasher.Zero, root)

	r, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	require.True(t, r.Success)
	require.Equal(t, 0, r.LeafIndex)

	r, err = m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(200), Commitment: feltDigest(2)})
	require.NoError(t, err)
	require.True(t, r.Success)
	require.Equal(t, 1, r.LeafIndex)

	bal, err := m.FreeBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(700)))

	next, err := m.NextIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	c, ok, err := m.Commitment(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, feltDigest(2), c)
	_, ok, err = m.Commitment(ctx, 2)
	require.NoError(t, err)
	require.False(t, ok)

	// the published root matches a full rebuild over the leaf list
	leaves, err := Leaves(ctx, m)
	require.NoError(t, err)
	tree, err := merkle.Build(leaves, config.NewTreeConfig(4, config.HashModeAlgebraic))
	require.NoError(t, err)
	root, err = m.CurrentRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), root)
}

func TestShieldRejections(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	r, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(0), Commitment: feltDigest(1)})
	require.NoError(t, err)
	require.False(t, r.Success)
	require.Equal(t, ErrZeroAmount.Error(), r.Error)

	r, err = m.SubmitShield(ctx, ShieldCall{Signer: bob, Amount: uint256.NewInt(1), Commitment: feltDigest(1)})
	require.NoError(t, err)
	require.False(t, r.Success)
	require.Equal(t, ErrInsufficientBalance.Error(), r.Error)
}

// A commitment the tree cannot hash must be rejected without occupying a
// leaf slot or touching balances.
func TestShieldRejectsUnusableCommitment(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	var bad hasher.Digest
	for i := range bad {
		bad[i] = 0xff
	}
	r, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: bad})
	require.NoError(t, err)
	require.False(t, r.Success)

	next, err := m.NextIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, next)
	bal, err := m.FreeBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(1000)))
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, hasher.Zero, root)

	// the pool keeps accepting valid commitments afterwards
	r, err = m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	require.True(t, r.Success)
	require.Equal(t, 0, r.LeafIndex)
}

func TestShieldTreeFull(t *testing.T) {
	ctx := context.Background()
	m := NewMemLedger(config.NewTreeConfig(2, config.HashModeAlgebraic), nil)
	m.Fund(alice, uint256.NewInt(1000))

	for i := 0; i < 4; i++ {
		r, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(1), Commitment: feltDigest(uint64(i + 1))})
		require.NoError(t, err)
		require.True(t, r.Success)
	}
	r, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(1), Commitment: feltDigest(5)})
	require.NoError(t, err)
	require.False(t, r.Success)
	require.Equal(t, ErrTreeFull.Error(), r.Error)
}

func TestUnshieldHappyPath(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	nullifier := feltDigest(77)
	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)

	r, err := m.SubmitUnshield(ctx, UnshieldCall{
		Signer:    alice,
		Amount:    uint256.NewInt(100),
		Nullifier: nullifier,
		Root:      root,
		Recipient: bob,
	})
	require.NoError(t, err)
	require.True(t, r.Success)

	spent, err := m.IsSpent(ctx, nullifier)
	require.NoError(t, err)
	require.True(t, spent)

	bal, err := m.FreeBalance(ctx, bob)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(100)))
}

func TestUnshieldAgainstOldRoot(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	oldRoot, err := m.CurrentRoot(ctx)
	require.NoError(t, err)
	_, err = m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(2)})
	require.NoError(t, err)

	// an old root stays in the known set
	r, err := m.SubmitUnshield(ctx, UnshieldCall{
		Signer: alice, Amount: uint256.NewInt(50), Nullifier: feltDigest(5), Root: oldRoot,
	})
	require.NoError(t, err)
	require.True(t, r.Success)
}

func TestUnshieldRejections(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)

	call := UnshieldCall{Signer: alice, Amount: uint256.NewInt(100), Nullifier: feltDigest(7), Root: root}

	bad := call
	bad.Amount = uint256.NewInt(0)
	r, err := m.SubmitUnshield(ctx, bad)
	require.NoError(t, err)
	require.Equal(t, ErrZeroAmount.Error(), r.Error)

	bad = call
	bad.Root = feltDigest(999)
	r, err = m.SubmitUnshield(ctx, bad)
	require.NoError(t, err)
	require.Equal(t, ErrUnknownRoot.Error(), r.Error)

	bad = call
	bad.Amount = uint256.NewInt(500) // more than the pool holds
	r, err = m.SubmitUnshield(ctx, bad)
	require.NoError(t, err)
	require.Equal(t, ErrInsufficientBalance.Error(), r.Error)

	// first spend succeeds, the replay is rejected
	r, err = m.SubmitUnshield(ctx, call)
	require.NoError(t, err)
	require.True(t, r.Success)
	r, err = m.SubmitUnshield(ctx, call)
	require.NoError(t, err)
	require.Equal(t, ErrAlreadySpent.Error(), r.Error)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)

	call := TransferCall{
		Signer: alice, Amount: uint256.NewInt(100),
		Nullifier: feltDigest(7), NewCommitment: feltDigest(2), Root: root,
	}
	r, err := m.SubmitTransfer(ctx, call)
	require.NoError(t, err)
	require.True(t, r.Success)
	require.Equal(t, 1, r.LeafIndex)

	spent, err := m.IsSpent(ctx, feltDigest(7))
	require.NoError(t, err)
	require.True(t, spent)
	next, err := m.NextIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, next)

	// no value left the pool: public balances unchanged
	bal, err := m.FreeBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(900)))

	// the replay is rejected
	r, err = m.SubmitTransfer(ctx, call)
	require.NoError(t, err)
	require.Equal(t, ErrAlreadySpent.Error(), r.Error)

	// the transferred amount can still be unshielded under the new root
	newRoot, err := m.CurrentRoot(ctx)
	require.NoError(t, err)
	r, err = m.SubmitUnshield(ctx, UnshieldCall{
		Signer: alice, Amount: uint256.NewInt(100), Nullifier: feltDigest(8),
		Root: newRoot, Recipient: bob,
	})
	require.NoError(t, err)
	require.True(t, r.Success)
	bal, err = m.FreeBalance(ctx, bob)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(100)))
}

func TestTransferRejections(t *testing.T) {
	ctx := context.Background()
	m := fundedLedger(t, nil)

	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)

	call := TransferCall{
		Signer: alice, Amount: uint256.NewInt(100),
		Nullifier: feltDigest(7), NewCommitment: feltDigest(2), Root: root,
	}

	bad := call
	bad.Amount = uint256.NewInt(0)
	r, err := m.SubmitTransfer(ctx, bad)
	require.NoError(t, err)
	require.Equal(t, ErrZeroAmount.Error(), r.Error)

	bad = call
	bad.Root = feltDigest(999)
	r, err = m.SubmitTransfer(ctx, bad)
	require.NoError(t, err)
	require.Equal(t, ErrUnknownRoot.Error(), r.Error)

	bad = call
	bad.NewCommitment = hasher.Zero
	r, err = m.SubmitTransfer(ctx, bad)
	require.NoError(t, err)
	require.Contains(t, r.Error, ErrInvalidProof.Error())

	// a failed transfer burns nothing and inserts nothing
	next, err := m.NextIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, next)
	spent, err := m.IsSpent(ctx, feltDigest(7))
	require.NoError(t, err)
	require.False(t, spent)
}

func TestUnshieldRunsVerifier(t *testing.T) {
	ctx := context.Background()
	verifyErr := errors.New("constraint unsatisfied")
	m := fundedLedger(t, func(proof []byte, nullifier, root hasher.Digest, amount *uint256.Int) error {
		return verifyErr
	})

	_, err := m.SubmitShield(ctx, ShieldCall{Signer: alice, Amount: uint256.NewInt(100), Commitment: feltDigest(1)})
	require.NoError(t, err)
	root, err := m.CurrentRoot(ctx)
	require.NoError(t, err)

	r, err := m.SubmitUnshield(ctx, UnshieldCall{
		Signer: alice, Amount: uint256.NewInt(100), Nullifier: feltDigest(7), Root: root,
	})
	require.NoError(t, err)
	require.False(t, r.Success)
	require.Contains(t, r.Error, ErrInvalidProof.Error())

	// the failed attempt must not burn the nullifier
	spent, err := m.IsSpent(ctx, feltDigest(7))
	require.NoError(t, err)
	require.False(t, spent)
}

func TestFaucetClaim(t *testing.T) {
	ctx := context.Background()
	m := NewMemLedger(config.NewTreeConfig(4, config.HashModeAlgebraic), nil)

	pubkey := make([]byte, 32)
	pubkey[0] = 0xaa
	sol, err := pow.Solve(ctx, pubkey, config.FaucetDifficulty)
	require.NoError(t, err)

	r, err := m.SubmitFaucetClaim(ctx, FaucetClaim{
		Target: alice, PubKey: pubkey, Nonce: sol.Nonce, PowHash: sol.Digest,
	})
	require.NoError(t, err)
	require.True(t, r.Success)

	bal, err := m.FreeBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, bal.Eq(uint256.NewInt(config.FaucetAmount)))

	// a mismatched hash is rejected even with a valid nonce
	r, err = m.SubmitFaucetClaim(ctx, FaucetClaim{
		Target: alice, PubKey: pubkey, Nonce: sol.Nonce, PowHash: feltDigest(1),
	})
	require.NoError(t, err)
	require.False(t, r.Success)

	// a nonce below the difficulty is rejected
	badNonce := sol.Nonce + 1
	r, err = m.SubmitFaucetClaim(ctx, FaucetClaim{
		Target: alice, PubKey: pubkey, Nonce: badNonce, PowHash: pow.DigestFor(pubkey, badNonce),
	})
	require.NoError(t, err)
	require.False(t, r.Success)
}
