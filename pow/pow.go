// Package pow implements the brute-force nonce search for validator
// faucet claims: find a nonce such that blake2b-256(pubkey || nonce as
// 8 little-endian bytes) has at least the required number of leading zero
// bits.
package pow

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"

	"golang.org/x/sync/errgroup"

	"github.com/lumenyx-chain/lumenyx/hasher"
	"github.com/lumenyx-chain/lumenyx/logger"
)

// progressInterval is how many nonces are tried between progress logs and
// cancellation checks
const progressInterval = 500_000

// Solution is a nonce whose digest meets the difficulty target
type Solution struct {
	Nonce  uint64
	Digest hasher.Digest
}

// LeadingZeroBits counts leading zero bits of the digest: eight per full
// zero byte, plus 8 - bit_length of the first nonzero byte.
func LeadingZeroBits(d hasher.Digest) int {
	zeros := 0
	for _, b := range d {
		if b == 0 {
			zeros += 8
			continue
		}
		zeros += bits.LeadingZeros8(b)
		break
	}
	return zeros
}

// DigestFor hashes pubkey with the given nonce
func DigestFor(pubkey []byte, nonce uint64) hasher.Digest {
	data := make([]byte, len(pubkey)+8)
	copy(data, pubkey)
	binary.LittleEndian.PutUint64(data[len(pubkey):], nonce)
	return hasher.Sum256(data)
}

// Solve searches nonces sequentially from zero and returns the first one
// meeting the difficulty. This is the reference behavior: the returned
// nonce is the smallest satisfying one. Cancellation is cooperative,
// checked between batches of attempts.
func Solve(ctx context.Context, pubkey []byte, difficulty int) (*Solution, error) {
	log := logger.Logger()
	log.Info().Int("difficulty", difficulty).Msg("searching for proof-of-work")

	for nonce := uint64(0); ; nonce++ {
		if nonce%progressInterval == 0 && nonce > 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("proof-of-work search canceled: %w", err)
			}
			log.Debug().Uint64("tried", nonce).Msg("proof-of-work progress")
		}
		digest := DigestFor(pubkey, nonce)
		if LeadingZeroBits(digest) >= difficulty {
			return &Solution{Nonce: nonce, Digest: digest}, nil
		}
	}
}

// SolveParallel splits the nonce space into per-worker stripes and returns
// a satisfying solution. Each nonce attempt is independent, so the search
// parallelizes trivially; unlike Solve the winner is not necessarily the
// smallest satisfying nonce.
func SolveParallel(ctx context.Context, pubkey []byte, difficulty, workers int) (*Solution, error) {
	if workers < 1 {
		workers = 1
	}
	found := make(chan *Solution, workers)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		start := uint64(w)
		g.Go(func() error {
			for nonce := start; ; nonce += uint64(workers) {
				if nonce/uint64(workers)%progressInterval == 0 {
					select {
					case <-gctx.Done():
						return nil
					default:
					}
				}
				digest := DigestFor(pubkey, nonce)
				if LeadingZeroBits(digest) >= difficulty {
					select {
					case found <- &Solution{Nonce: nonce, Digest: digest}:
					default:
					}
					return errFound
				}
			}
		})
	}

	err := g.Wait()
	close(found)
	if sol := <-found; sol != nil {
		return sol, nil
	}
	if err != nil && err != errFound {
		return nil, err
	}
	return nil, fmt.Errorf("proof-of-work search canceled: %w", ctx.Err())
}

// errFound stops the remaining workers through the errgroup context
var errFound = fmt.Errorf("solution found")
