package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/merkle"
	"github.com/lumenyx-chain/lumenyx/pow"
)

// VerifyFunc checks an unshield proof against its public inputs. A nil
// VerifyFunc accepts every proof, which is only acceptable on a devnet.
type VerifyFunc func(proof []byte, nullifier, root hasher.Digest, amount *uint256.Int) error

// MemLedger replicates the privacy pallet's state transitions in process:
// commitment insertion with full-rebuild root recomputation, the known-root
// set, the spent-nullifier set and balance accounting. It backs tests and
// the devnet path, and serves as the executable reference for the chain's
// semantics.
type MemLedger struct {
	mu sync.Mutex

	cfg         config.TreeConfig
	commitments []hasher.Digest
	currentRoot hasher.Digest
	knownRoots  map[hasher.Digest]bool
	spent       map[hasher.Digest]bool
	balances    map[string]*uint256.Int
	pool        *uint256.Int
	verify      VerifyFunc
	blockNum    int
}

func NewMemLedger(cfg config.TreeConfig, verify VerifyFunc) *MemLedger {
	return &MemLedger{
		cfg:        cfg,
		knownRoots: make(map[hasher.Digest]bool),
		spent:      make(map[hasher.Digest]bool),
		balances:   make(map[string]*uint256.Int),
		pool:       uint256.NewInt(0),
		verify:     verify,
	}
}

// Fund credits an account, standing in for genesis balances in tests
func (m *MemLedger) Fund(account string, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(account, amount)
}

func (m *MemLedger) credit(account string, amount *uint256.Int) {
	bal, ok := m.balances[account]
	if !ok {
		bal = uint256.NewInt(0)
		m.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (m *MemLedger) NextIndex(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commitments), nil
}

func (m *MemLedger) Commitment(_ context.Context, index int) (hasher.Digest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.commitments) {
		return hasher.Digest{}, false, nil
	}
	return m.commitments[index], true, nil
}

func (m *MemLedger) CurrentRoot(_ context.Context) (hasher.Digest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRoot, nil
}

func (m *MemLedger) IsSpent(_ context.Context, nullifier hasher.Digest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent[nullifier], nil
}

func (m *MemLedger) FreeBalance(_ context.Context, account string) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[account]; ok {
		return bal.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

// insertCommitment appends the leaf and republishes the root, mirroring
// the pallet: the root is recomputed by full rebuild and remembered in the
// known-root set.
func (m *MemLedger) insertCommitment(c hasher.Digest) (int, error) {
	if len(m.commitments) >= 1<<m.cfg.Depth {
		return 0, ErrTreeFull
	}
	// a leaf the tree cannot hash must never occupy a slot
	if m.cfg.Mode == config.HashModeAlgebraic {
		if _, err := field.DecodeBE(c[:]); err != nil {
			return 0, fmt.Errorf("invalid commitment: %w", err)
		}
	}
	m.commitments = append(m.commitments, c)
	tree, err := merkle.Build(m.commitments, m.cfg)
	if err != nil {
		m.commitments = m.commitments[:len(m.commitments)-1]
		return 0, err
	}
	m.currentRoot = tree.Root()
	m.knownRoots[m.currentRoot] = true
	return len(m.commitments) - 1, nil
}

func (m *MemLedger) SubmitShield(_ context.Context, call ShieldCall) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call.Amount == nil || call.Amount.IsZero() {
		return m.failed(ErrZeroAmount), nil
	}
	bal := m.balances[call.Signer]
	if bal == nil || bal.Lt(call.Amount) {
		return m.failed(ErrInsufficientBalance), nil
	}
	idx, err := m.insertCommitment(call.Commitment)
	if err != nil {
		return m.failed(err), nil
	}
	bal.Sub(bal, call.Amount)
	m.pool.Add(m.pool, call.Amount)
	return m.included(idx), nil
}

func (m *MemLedger) SubmitUnshield(_ context.Context, call UnshieldCall) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call.Amount == nil || call.Amount.IsZero() {
		return m.failed(ErrZeroAmount), nil
	}
	if !m.knownRoots[call.Root] {
		return m.failed(ErrUnknownRoot), nil
	}
	if m.spent[call.Nullifier] {
		return m.failed(ErrAlreadySpent), nil
	}
	if m.pool.Lt(call.Amount) {
		return m.failed(ErrInsufficientBalance), nil
	}
	if m.verify != nil {
		if err := m.verify(call.Proof, call.Nullifier, call.Root, call.Amount); err != nil {
			return m.failed(fmt.Errorf("%w: %v", ErrInvalidProof, err)), nil
		}
	}

	recipient := call.Recipient
	if recipient == "" {
		recipient = call.Signer
	}
	m.spent[call.Nullifier] = true
	m.pool.Sub(m.pool, call.Amount)
	m.credit(recipient, call.Amount)
	return m.included(-1), nil
}

// SubmitTransfer follows the pallet's check order: zero amount, known
// root, spent set, capacity, proof, then spend and insert atomically.
func (m *MemLedger) SubmitTransfer(_ context.Context, call TransferCall) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call.Amount == nil || call.Amount.IsZero() {
		return m.failed(ErrZeroAmount), nil
	}
	if !m.knownRoots[call.Root] {
		return m.failed(ErrUnknownRoot), nil
	}
	if m.spent[call.Nullifier] {
		return m.failed(ErrAlreadySpent), nil
	}
	if len(m.commitments) >= 1<<m.cfg.Depth {
		return m.failed(ErrTreeFull), nil
	}
	if call.NewCommitment == hasher.Zero {
		return m.failed(fmt.Errorf("%w: zero commitment", ErrInvalidProof)), nil
	}
	if m.verify != nil {
		if err := m.verify(call.Proof, call.Nullifier, call.Root, call.Amount); err != nil {
			return m.failed(fmt.Errorf("%w: %v", ErrInvalidProof, err)), nil
		}
	}

	idx, err := m.insertCommitment(call.NewCommitment)
	if err != nil {
		return m.failed(err), nil
	}
	m.spent[call.Nullifier] = true
	return m.included(idx), nil
}

func (m *MemLedger) SubmitFaucetClaim(_ context.Context, call FaucetClaim) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	digest := pow.DigestFor(call.PubKey, call.Nonce)
	if digest != call.PowHash || pow.LeadingZeroBits(digest) < config.FaucetDifficulty {
		return m.failed(fmt.Errorf("proof-of-work below difficulty %d", config.FaucetDifficulty)), nil
	}
	m.credit(call.Target, uint256.NewInt(config.FaucetAmount))
	return m.included(-1), nil
}

func (m *MemLedger) failed(err error) *Receipt {
	return &Receipt{Success: false, LeafIndex: -1, Error: err.Error()}
}

func (m *MemLedger) included(leafIndex int) *Receipt {
	m.blockNum++
	return &Receipt{
		Success:   true,
		BlockHash: fmt.Sprintf("#%d", m.blockNum),
		LeafIndex: leafIndex,
	}
}
