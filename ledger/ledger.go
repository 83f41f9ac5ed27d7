// Package ledger defines the boundary to the LUMENYX node: typed queries
// over the privacy pallet's storage and submission of shield, unshield and
// faucet-claim calls. The node is authoritative for roots, leaf indices
// and the spent set; everything here is a view or a request.
package ledger

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/hasher"
)

var (
	// ErrAlreadySpent means the nullifier is in the spent set; the spend
	// must not be retried with the same note
	ErrAlreadySpent = errors.New("nullifier already spent")
	// ErrUnknownRoot means the submitted root was never published
	ErrUnknownRoot = errors.New("unknown merkle root")
	// ErrTreeFull means the pool reached 2^depth notes
	ErrTreeFull = errors.New("commitment tree full")
	// ErrInvalidProof means on-chain verification rejected the proof
	ErrInvalidProof = errors.New("invalid proof")
	// ErrZeroAmount rejects zero-value shields and unshields
	ErrZeroAmount = errors.New("zero amount")
	// ErrInsufficientBalance means the account cannot fund the shield
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Receipt reports the outcome of a submitted call
type Receipt struct {
	Success   bool
	BlockHash string
	LeafIndex int    // assigned index for calls that insert a commitment, -1 otherwise
	Error     string // node-side error description when Success is false
}

// ShieldCall moves amount planck from the signer's public balance behind
// commitment
type ShieldCall struct {
	Signer     string // SS58 address, signature handling is the caller's concern
	Amount     *uint256.Int
	Commitment hasher.Digest
}

// UnshieldCall withdraws amount planck to Recipient by revealing the
// nullifier and proving membership under Root
type UnshieldCall struct {
	Signer    string
	Amount    *uint256.Int
	Nullifier hasher.Digest
	Root      hasher.Digest
	Proof     []byte
	Recipient string // defaults to Signer when empty
}

// TransferCall spends a nullifier and inserts NewCommitment in the same
// call, moving the amount to a new holder without it ever leaving the
// pool. The proof covers (nullifier, root, amount), the same relation an
// unshield proves; the new commitment is bound by the call itself.
type TransferCall struct {
	Signer        string // relay address, reveals nothing about the holder
	Amount        *uint256.Int
	Nullifier     hasher.Digest
	NewCommitment hasher.Digest
	Root          hasher.Digest
	Proof         []byte
}

// FaucetClaim is the unsigned validator-faucet call
type FaucetClaim struct {
	Target  string // SS58 address
	PubKey  []byte // raw 32-byte public key hashed by the proof-of-work
	Nonce   uint64
	PowHash hasher.Digest
}

// Client is the read/write boundary to the node
type Client interface {
	// NextIndex returns the number of leaves inserted so far, which is
	// also the index the next commitment will receive
	NextIndex(ctx context.Context) (int, error)
	// Commitment returns the stored leaf at index; ok is false for an
	// index that was never filled
	Commitment(ctx context.Context, index int) (hasher.Digest, bool, error)
	// CurrentRoot returns the latest published root
	CurrentRoot(ctx context.Context) (hasher.Digest, error)
	// IsSpent reports whether the nullifier is in the spent set
	IsSpent(ctx context.Context, nullifier hasher.Digest) (bool, error)
	// FreeBalance returns the spendable public balance of an account
	FreeBalance(ctx context.Context, account string) (*uint256.Int, error)

	SubmitShield(ctx context.Context, call ShieldCall) (*Receipt, error)
	SubmitUnshield(ctx context.Context, call UnshieldCall) (*Receipt, error)
	SubmitTransfer(ctx context.Context, call TransferCall) (*Receipt, error)
	SubmitFaucetClaim(ctx context.Context, call FaucetClaim) (*Receipt, error)
}

// Leaves fetches all inserted commitments in leaf order, resolving any
// missing entry to the zero sentinel as the tree construction requires.
func Leaves(ctx context.Context, c Client) ([]hasher.Digest, error) {
	count, err := c.NextIndex(ctx)
	if err != nil {
		return nil, err
	}
	leaves := make([]hasher.Digest, count)
	for i := 0; i < count; i++ {
		leaf, ok, err := c.Commitment(ctx, i)
		if err != nil {
			return nil, err
		}
		if ok {
			leaves[i] = leaf
		}
	}
	return leaves, nil
}
