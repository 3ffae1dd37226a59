package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasapolrittideah/lms-api/shared/security"
)

func TestHasher_HashAndVerify(t *testing.T) {
	for _, algorithm := range []security.Algorithm{security.AlgorithmBcrypt, security.AlgorithmArgon2id} {
		t.Run(string(algorithm), func(t *testing.T) {
			h, err := security.NewHasher(algorithm)
			require.NoError(t, err)

			encoded, err := h.Hash("Secr3t!")
			require.NoError(t, err)
			assert.NotContains(t, encoded, "Secr3t!")

			assert.True(t, h.Verify("Secr3t!", encoded))
			assert.False(t, h.Verify("wrong", encoded))
			assert.False(t, h.NeedsUpgrade(encoded))

			again, err := h.Hash("Secr3t!")
			require.NoError(t, err)
			assert.NotEqual(t, encoded, again, "hashes must be salted")
		})
	}
}

func TestHasher_BcryptUsesFixedCost(t *testing.T) {
	h, err := security.NewHasher(security.AlgorithmBcrypt)
	require.NoError(t, err)

	encoded, err := h.Hash("Secr3t!")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, security.BcryptCost, cost)
}

func TestHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	legacy, err := security.NewHasher(security.AlgorithmBcrypt)
	require.NoError(t, err)
	current, err := security.NewHasher(security.AlgorithmArgon2id)
	require.NoError(t, err)

	encoded, err := legacy.Hash("Secr3t!")
	require.NoError(t, err)

	assert.True(t, current.Verify("Secr3t!", encoded))
	assert.True(t, current.NeedsUpgrade(encoded))
}

func TestHasher_RejectsBadInput(t *testing.T) {
	h, err := security.NewHasher(security.AlgorithmBcrypt)
	require.NoError(t, err)

	_, err = h.Hash("")
	assert.ErrorIs(t, err, security.ErrEmptyPassword)

	_, err = h.Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, security.ErrPasswordTooLong)

	assert.False(t, h.Verify("Secr3t!", ""))
	assert.False(t, h.Verify("Secr3t!", "$argon2id$garbage"))
	assert.False(t, h.Verify("Secr3t!", "plaintext"))

	assert.NotPanics(t, func() { h.VerifyDummy("anything") })
}

func TestNewHasher_UnknownAlgorithm(t *testing.T) {
	_, err := security.NewHasher("md5")
	assert.ErrorIs(t, err, security.ErrUnsupportedAlgorithm)
}
