package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
)

// rpcClient talks to a LUMENYX node over JSON-RPC (websocket or http),
// using the privacy_* and validatorFaucet_* methods the node's RPC
// extension exposes. All 32-byte values cross the wire as 0x-prefixed
// big-endian hex, the storage convention.
type rpcClient struct {
	c *rpc.Client
}

// Dial connects to a node RPC endpoint, e.g. ws://127.0.0.1:9944
func Dial(ctx context.Context, url string) (Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node at %s: %w", url, err)
	}
	return &rpcClient{c: c}, nil
}

func (r *rpcClient) NextIndex(ctx context.Context) (int, error) {
	var next hexutil.Uint64
	if err := r.c.CallContext(ctx, &next, "privacy_nextIndex"); err != nil {
		return 0, fmt.Errorf("failed to query next index: %w", err)
	}
	return int(next), nil
}

func (r *rpcClient) Commitment(ctx context.Context, index int) (hasher.Digest, bool, error) {
	var hex *string
	if err := r.c.CallContext(ctx, &hex, "privacy_commitment", index); err != nil {
		return hasher.Digest{}, false, fmt.Errorf("failed to query commitment %d: %w", index, err)
	}
	if hex == nil {
		return hasher.Digest{}, false, nil
	}
	d, err := field.ParseStorageHex(*hex)
	if err != nil {
		return hasher.Digest{}, false, fmt.Errorf("failed to parse commitment %d: %w", index, err)
	}
	return hasher.Digest(d), true, nil
}

func (r *rpcClient) CurrentRoot(ctx context.Context) (hasher.Digest, error) {
	var hex string
	if err := r.c.CallContext(ctx, &hex, "privacy_merkleRoot"); err != nil {
		return hasher.Digest{}, fmt.Errorf("failed to query merkle root: %w", err)
	}
	d, err := field.ParseStorageHex(hex)
	if err != nil {
		return hasher.Digest{}, fmt.Errorf("failed to parse merkle root: %w", err)
	}
	return hasher.Digest(d), nil
}

func (r *rpcClient) IsSpent(ctx context.Context, nullifier hasher.Digest) (bool, error) {
	var spent bool
	hex := field.StorageBytes(nullifier).Hex()
	if err := r.c.CallContext(ctx, &spent, "privacy_isSpent", hex); err != nil {
		return false, fmt.Errorf("failed to query spent set: %w", err)
	}
	return spent, nil
}

func (r *rpcClient) FreeBalance(ctx context.Context, account string) (*uint256.Int, error) {
	var hex string
	if err := r.c.CallContext(ctx, &hex, "system_freeBalance", account); err != nil {
		return nil, fmt.Errorf("failed to query balance of %s: %w", account, err)
	}
	bal, err := uint256.FromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return bal, nil
}

// rpcReceipt is the wire form of a submission result
type rpcReceipt struct {
	Success   bool   `json:"success"`
	BlockHash string `json:"block_hash"`
	LeafIndex *int   `json:"leaf_index,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *rpcClient) submit(ctx context.Context, method string, args ...any) (*Receipt, error) {
	var res rpcReceipt
	if err := r.c.CallContext(ctx, &res, method, args...); err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", method, err)
	}
	receipt := &Receipt{
		Success:   res.Success,
		BlockHash: res.BlockHash,
		LeafIndex: -1,
		Error:     res.Error,
	}
	if res.LeafIndex != nil {
		receipt.LeafIndex = *res.LeafIndex
	}
	return receipt, nil
}

func (r *rpcClient) SubmitShield(ctx context.Context, call ShieldCall) (*Receipt, error) {
	return r.submit(ctx, "privacy_shield",
		call.Signer,
		call.Amount.Hex(),
		field.StorageBytes(call.Commitment).Hex(),
	)
}

func (r *rpcClient) SubmitUnshield(ctx context.Context, call UnshieldCall) (*Receipt, error) {
	recipient := call.Recipient
	if recipient == "" {
		recipient = call.Signer
	}
	return r.submit(ctx, "privacy_unshield",
		call.Signer,
		call.Amount.Hex(),
		field.StorageBytes(call.Nullifier).Hex(),
		field.StorageBytes(call.Root).Hex(),
		hexutil.Encode(call.Proof),
		recipient,
	)
}

func (r *rpcClient) SubmitTransfer(ctx context.Context, call TransferCall) (*Receipt, error) {
	return r.submit(ctx, "privacy_shieldedTransfer",
		call.Signer,
		call.Amount.Hex(),
		field.StorageBytes(call.Nullifier).Hex(),
		field.StorageBytes(call.NewCommitment).Hex(),
		field.StorageBytes(call.Root).Hex(),
		hexutil.Encode(call.Proof),
	)
}

func (r *rpcClient) SubmitFaucetClaim(ctx context.Context, call FaucetClaim) (*Receipt, error) {
	return r.submit(ctx, "validatorFaucet_claimForValidator",
		call.Target,
		call.Nonce,
		field.StorageBytes(call.PowHash).Hex(),
	)
}
