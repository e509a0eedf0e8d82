package crypto

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

// TestSecretBoxRoundTripProperty verifies the round-trip law from SPEC_FULL
// §8/§10.4: for any plaintext, Decrypt(Encrypt(x)) == x.
func TestSecretBoxRoundTripProperty(t *testing.T) {
	box, err := New(fixedKey())
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt(encrypt(x)) == x", prop.ForAll(
		func(plaintext string) bool {
			ciphertext, err := box.EncryptString(plaintext)
			if err != nil {
				return false
			}
			decrypted, err := box.DecryptString(ciphertext)
			if err != nil {
				return false
			}
			return decrypted == plaintext
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestSecretBoxRejectsTamperedCiphertext(t *testing.T) {
	box, err := New(fixedKey())
	require.NoError(t, err)

	ciphertext, err := box.Encrypt([]byte("top secret"))
	require.NoError(t, err)
	tampered := bytes.Clone(ciphertext)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = box.Decrypt(tampered)
	assert.Error(t, err)
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	_, err := New([]byte("too short"))
	assert.Error(t, err)
}
