package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSeedRoundTrip(t *testing.T) {
	blob, err := EncryptSeed("sEdTVm5h1yQ6Gsg5QqtPXbkXW7eM2pD", "correct horse")
	require.NoError(t, err)

	seed, err := DecryptSeed(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "sEdTVm5h1yQ6Gsg5QqtPXbkXW7eM2pD", seed)
}

func TestDecryptSeedWrongPassword(t *testing.T) {
	blob, err := EncryptSeed("sEdSomeSeed", "right")
	require.NoError(t, err)

	_, err = DecryptSeed(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptSeedRequiresInputs(t *testing.T) {
	_, err := EncryptSeed("", "pw")
	assert.Error(t, err)

	_, err = EncryptSeed("sEdSomeSeed", "")
	assert.Error(t, err)
}

func TestLoadSeedPrefersRaw(t *testing.T) {
	seed, err := LoadSeed(SeedConfig{RawSeed: "sEdRawSeed"})
	require.NoError(t, err)
	assert.Equal(t, "sEdRawSeed", seed)
}

func TestLoadSeedFromEncryptedFile(t *testing.T) {
	blob, err := EncryptSeed("sEdStoredSeed", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	seed, err := LoadSeed(SeedConfig{EncryptedSeedPath: path, SeedPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "sEdStoredSeed", seed)
}

func TestLoadSeedUnconfigured(t *testing.T) {
	_, err := LoadSeed(SeedConfig{})
	assert.Error(t, err)
}

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner("sEdTVm5h1yQ6Gsg5QqtPXbkXW7eM2pD", "rSigningAccount")
	require.NoError(t, err)
	assert.Equal(t, "rSigningAccount", s.Address())
	assert.NotEmpty(t, s.PublicKey())

	payload := []byte(`{"TransactionType":"Payment","Account":"rSigningAccount"}`)
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	ok, err := Verify(s.PublicKey(), payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	// Tampered payload fails verification.
	ok, err = Verify(s.PublicKey(), append(payload, 'x'), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignerIsDeterministicPerSeed(t *testing.T) {
	a, err := NewSigner("sEdSameSeed", "rA")
	require.NoError(t, err)
	b, err := NewSigner("sEdSameSeed", "rB")
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey(), b.PublicKey())

	c, err := NewSigner("sEdOtherSeed", "rC")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), c.PublicKey())
}
