// Package pool ties the accumulator, the ledger and the prover into the
// user-facing shielded-pool operations: shield, unshield, faucet claims
// and authentication-path export.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/ledger"
	"github.com/lumenyx-chain/lumenyx/logger"
	"github.com/lumenyx-chain/lumenyx/merkle"
	"github.com/lumenyx-chain/lumenyx/notes"
	"github.com/lumenyx-chain/lumenyx/pow"
	"github.com/lumenyx-chain/lumenyx/prover"
)

var (
	// ErrInsufficientFunds is returned before any cryptographic work when
	// the signer cannot fund the shield
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRootMismatch means the locally rebuilt root still disagrees with
	// the published root after re-synchronizing. The chain's root is
	// authoritative: the local view is stale, not corrupt.
	ErrRootMismatch = errors.New("local root does not match published root")
	// ErrSubmissionFailed wraps a node-side rejection
	ErrSubmissionFailed = errors.New("submission failed")
)

// rebuildAttempts bounds how often Unshield refetches the leaf list when
// the locally computed root trails the published one
const rebuildAttempts = 3

// Frontend drives the shielded pool for one account
type Frontend struct {
	Ledger   ledger.Client
	Prover   prover.Prover
	Tree     config.TreeConfig
	NotesDir string

	log zerolog.Logger
}

func NewFrontend(l ledger.Client, p prover.Prover, notesDir string) *Frontend {
	return &Frontend{
		Ledger:   l,
		Prover:   p,
		Tree:     config.DefaultTree(),
		NotesDir: notesDir,
		log:      logger.Logger(),
	}
}

// Shield deposits amount planck behind a fresh commitment and persists the
// resulting note. The balance check runs before any secret material is
// generated. A draft whose submission fails holds no on-chain state and is
// discarded; the caller may retry with a new draft, or resubmit the same
// one only when the first submission is known not to have landed.
func (f *Frontend) Shield(ctx context.Context, signer string, amount *uint256.Int) (*notes.Note, error) {
	balance, err := f.Ledger.FreeBalance(ctx, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.Lt(amount) {
		return nil, fmt.Errorf("%w: have %s planck, need %s", ErrInsufficientFunds, balance.Dec(), amount.Dec())
	}

	note, err := notes.NewNote(f.Tree.Mode, amount)
	if err != nil {
		return nil, err
	}
	f.log.Info().
		Str("commitment", field.StorageBytes(note.Commitment).Hex()).
		Str("amount", amount.Dec()).
		Msg("submitting shield")

	receipt, err := f.Ledger.SubmitShield(ctx, ledger.ShieldCall{
		Signer:     signer,
		Amount:     amount,
		Commitment: note.Commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit shield: %w", err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, receipt.Error)
	}

	root, err := f.Ledger.CurrentRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read published root: %w", err)
	}
	if err := note.MarkShielded(receipt.LeafIndex, root); err != nil {
		return nil, err
	}
	path, err := note.Save(f.NotesDir)
	if err != nil {
		return nil, err
	}
	f.log.Info().Int("leaf_index", note.LeafIndex).Str("file", path).
		Str("block", receipt.BlockHash).Msg("shield complete, note saved")
	return note, nil
}

// syncTree fetches the full commitment list and rebuilds the tree until
// the local root matches the published one. A mismatch means the view went
// stale between fetches, so it triggers a rebuild rather than an abort;
// after rebuildAttempts the caller gets ErrRootMismatch and should
// re-synchronize later.
func (f *Frontend) syncTree(ctx context.Context) (*merkle.Tree, hasher.Digest, error) {
	for attempt := 0; attempt < rebuildAttempts; attempt++ {
		leaves, err := ledger.Leaves(ctx, f.Ledger)
		if err != nil {
			return nil, hasher.Digest{}, fmt.Errorf("failed to fetch commitments: %w", err)
		}
		tree, err := merkle.Build(leaves, f.Tree)
		if err != nil {
			return nil, hasher.Digest{}, err
		}
		published, err := f.Ledger.CurrentRoot(ctx)
		if err != nil {
			return nil, hasher.Digest{}, fmt.Errorf("failed to read published root: %w", err)
		}
		if tree.Root() == published {
			return tree, published, nil
		}
		f.log.Warn().
			Str("local", field.StorageBytes(tree.Root()).Hex()).
			Str("published", field.StorageBytes(published).Hex()).
			Int("attempt", attempt+1).
			Msg("root mismatch, local view is stale; rebuilding")
	}
	return nil, hasher.Digest{}, ErrRootMismatch
}

// spendPath runs the checks every spend needs before any proving work:
// the local state gate, the on-chain spent set, the root-synchronized tree
// rebuild and the path verification. A nullifier found in the spent set
// marks the note dead on disk.
func (f *Frontend) spendPath(ctx context.Context, note *notes.Note) (*merkle.Path, hasher.Digest, error) {
	if note.State == notes.Spent {
		return nil, hasher.Digest{}, ledger.ErrAlreadySpent
	}
	if note.State != notes.Shielded || note.LeafIndex < 0 {
		return nil, hasher.Digest{}, fmt.Errorf("note is not shielded (state %s)", note.State)
	}
	spent, err := f.Ledger.IsSpent(ctx, note.Nullifier)
	if err != nil {
		return nil, hasher.Digest{}, fmt.Errorf("failed to check spent set: %w", err)
	}
	if spent {
		// record it locally so the dead note is never submitted again
		if err := note.MarkSpent(); err == nil {
			_, _ = note.Save(f.NotesDir)
		}
		return nil, hasher.Digest{}, ledger.ErrAlreadySpent
	}

	tree, root, err := f.syncTree(ctx)
	if err != nil {
		return nil, hasher.Digest{}, err
	}
	path, err := tree.Path(note.LeafIndex)
	if err != nil {
		return nil, hasher.Digest{}, err
	}
	ok, err := merkle.VerifyPath(note.Commitment, path, root, f.Tree.Engine)
	if err != nil {
		return nil, hasher.Digest{}, err
	}
	if !ok {
		return nil, hasher.Digest{}, fmt.Errorf("note commitment does not verify against the published root at index %d", note.LeafIndex)
	}
	return path, root, nil
}

// Unshield withdraws the note's full amount to recipient. The spent-set
// check runs before any tree building or proving; a note whose nullifier
// is already recorded must never be retried.
func (f *Frontend) Unshield(ctx context.Context, signer string, note *notes.Note, recipient string) (*ledger.Receipt, error) {
	path, root, err := f.spendPath(ctx, note)
	if err != nil {
		return nil, err
	}

	f.log.Info().Int("leaf_index", note.LeafIndex).Msg("generating spend proof")
	proof, err := f.Prover.ProveSpend(&prover.SpendWitness{
		Amount:    note.Amount,
		Secret:    note.Secret,
		Blinding:  note.Blinding,
		Path:      path,
		Nullifier: note.Nullifier,
		Root:      root,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := f.Ledger.SubmitUnshield(ctx, ledger.UnshieldCall{
		Signer:    signer,
		Amount:    note.Amount,
		Nullifier: note.Nullifier,
		Root:      root,
		Proof:     proof,
		Recipient: recipient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit unshield: %w", err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, receipt.Error)
	}

	if err := note.MarkSpent(); err != nil {
		return nil, err
	}
	if _, err := note.Save(f.NotesDir); err != nil {
		return nil, err
	}
	f.log.Info().Str("block", receipt.BlockHash).Str("amount", note.Amount.Dec()).
		Msg("unshield complete")
	return receipt, nil
}

// Transfer spends note inside the pool and re-commits its full amount to
// a fresh note, which it persists and returns. Only the nullifier and the
// new commitment are revealed on chain; the signer is a relay and learns
// nothing about the holder.
func (f *Frontend) Transfer(ctx context.Context, signer string, note *notes.Note) (*notes.Note, error) {
	path, root, err := f.spendPath(ctx, note)
	if err != nil {
		return nil, err
	}
	next, err := notes.NewNote(f.Tree.Mode, note.Amount)
	if err != nil {
		return nil, err
	}

	f.log.Info().Int("leaf_index", note.LeafIndex).
		Str("new_commitment", field.StorageBytes(next.Commitment).Hex()).
		Msg("generating transfer proof")
	proof, err := f.Prover.ProveSpend(&prover.SpendWitness{
		Amount:    note.Amount,
		Secret:    note.Secret,
		Blinding:  note.Blinding,
		Path:      path,
		Nullifier: note.Nullifier,
		Root:      root,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := f.Ledger.SubmitTransfer(ctx, ledger.TransferCall{
		Signer:        signer,
		Amount:        note.Amount,
		Nullifier:     note.Nullifier,
		NewCommitment: next.Commitment,
		Root:          root,
		Proof:         proof,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, receipt.Error)
	}

	if err := note.MarkSpent(); err != nil {
		return nil, err
	}
	if _, err := note.Save(f.NotesDir); err != nil {
		return nil, err
	}
	newRoot, err := f.Ledger.CurrentRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read published root: %w", err)
	}
	if err := next.MarkShielded(receipt.LeafIndex, newRoot); err != nil {
		return nil, err
	}
	if _, err := next.Save(f.NotesDir); err != nil {
		return nil, err
	}
	f.log.Info().Int("leaf_index", next.LeafIndex).Str("block", receipt.BlockHash).
		Msg("transfer complete, new note saved")
	return next, nil
}

// ClaimFaucet solves the validator-faucet proof-of-work for the target's
// public key and submits the unsigned claim
func (f *Frontend) ClaimFaucet(ctx context.Context, target string, pubkey []byte) (*ledger.Receipt, error) {
	sol, err := pow.Solve(ctx, pubkey, config.FaucetDifficulty)
	if err != nil {
		return nil, err
	}
	f.log.Info().Uint64("nonce", sol.Nonce).Msg("proof-of-work found")

	receipt, err := f.Ledger.SubmitFaucetClaim(ctx, ledger.FaucetClaim{
		Target:  target,
		PubKey:  pubkey,
		Nonce:   sol.Nonce,
		PowHash: sol.Digest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit faucet claim: %w", err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionFailed, receipt.Error)
	}
	return receipt, nil
}
