package notes

import (
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/lumenyx-chain/lumenyx/config"
	"github.com/lumenyx-chain/lumenyx/field"
	"github.com/lumenyx-chain/lumenyx/hasher"
)

func feltDigest(v uint64) hasher.Digest {
	return hasher.Digest(field.EncodeBE(field.FromUint64(v)))
}

func TestDerive(t *testing.T) {
	engine := hasher.Algebraic{}
	amount := uint256.NewInt(100)
	secret := feltDigest(7)
	blinding := feltDigest(9)

	commitment, nullifier, err := Derive(engine, amount, secret, blinding)
	require.NoError(t, err)

	wantCommitment, err := engine.HashMany(feltDigest(100), secret, blinding)
	require.NoError(t, err)
	require.Equal(t, wantCommitment, commitment)

	wantNullifier, err := engine.HashMany(commitment, secret)
	require.NoError(t, err)
	require.Equal(t, wantNullifier, nullifier)
}

func TestDeriveRejectsOversizedAmount(t *testing.T) {
	over := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	_, _, err := Derive(hasher.Algebraic{}, over, feltDigest(1), feltDigest(2))
	require.ErrorIs(t, err, field.ErrAmountRange)
}

func TestDeriveIsDeterministic(t *testing.T) {
	engine := hasher.Algebraic{}
	amount := uint256.NewInt(42)
	c1, n1, err := Derive(engine, amount, feltDigest(1), feltDigest(2))
	require.NoError(t, err)
	c2, n2, err := Derive(engine, amount, feltDigest(1), feltDigest(2))
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	require.Equal(t, n1, n2)

	// a different secret changes both outputs
	c3, n3, err := Derive(engine, amount, feltDigest(3), feltDigest(2))
	require.NoError(t, err)
	require.NotEqual(t, c1, c3)
	require.NotEqual(t, n1, n3)
}

func TestNewNoteDistinctSecrets(t *testing.T) {
	amount := uint256.NewInt(1000)
	a, err := NewNote(config.HashModeAlgebraic, amount)
	require.NoError(t, err)
	b, err := NewNote(config.HashModeAlgebraic, amount)
	require.NoError(t, err)

	require.NotEqual(t, a.Secret, b.Secret)
	require.NotEqual(t, a.Commitment, b.Commitment)
	require.NotEqual(t, a.Nullifier, b.Nullifier)
	require.Equal(t, -1, a.LeafIndex)
	require.Equal(t, Drafted, a.State)
}

func TestNewSecretIsCanonicalInAlgebraicMode(t *testing.T) {
	for i := 0; i < 8; i++ {
		s, err := NewSecret(config.HashModeAlgebraic)
		require.NoError(t, err)
		_, err = field.DecodeBE(s[:])
		require.NoError(t, err)
	}
}

func TestLifecycleIsForwardOnly(t *testing.T) {
	n, err := NewNote(config.HashModeAlgebraic, uint256.NewInt(5))
	require.NoError(t, err)

	// cannot spend a draft
	require.ErrorIs(t, n.MarkSpent(), ErrBackwardTransition)

	require.NoError(t, n.MarkShielded(3, feltDigest(99)))
	require.Equal(t, 3, n.LeafIndex)
	require.Equal(t, Shielded, n.State)

	// cannot re-shield
	require.ErrorIs(t, n.MarkShielded(4, feltDigest(1)), ErrBackwardTransition)

	require.NoError(t, n.MarkSpent())
	require.Equal(t, Spent, n.State)

	// terminal
	require.ErrorIs(t, n.MarkSpent(), ErrBackwardTransition)
	require.ErrorIs(t, n.MarkShielded(5, feltDigest(1)), ErrBackwardTransition)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	n, err := NewNote(config.HashModeAlgebraic, uint256.NewInt(2_000_000_000_000))
	require.NoError(t, err)
	require.NoError(t, n.MarkShielded(7, feltDigest(123)))

	path, err := n.Save(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "note_7.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, n.Amount.Eq(loaded.Amount))
	require.Equal(t, n.Secret, loaded.Secret)
	require.Equal(t, n.Blinding, loaded.Blinding)
	require.Equal(t, n.Commitment, loaded.Commitment)
	require.Equal(t, n.Nullifier, loaded.Nullifier)
	require.Equal(t, n.LeafIndex, loaded.LeafIndex)
	require.Equal(t, n.Root, loaded.Root)
	require.Equal(t, Shielded, loaded.State)
}

func TestLoadRejectsCorruptFields(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	var n Note
	require.Error(t, n.UnmarshalJSON([]byte(`{"amount":"abc"}`)))
	require.Error(t, n.UnmarshalJSON([]byte(`{"amount":"10","secret":"0x1234"}`)))
}
