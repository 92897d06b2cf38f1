package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	sig := Sign(priv, []byte("hello"))
	require.NoError(t, Verify(pub, []byte("hello"), sig))
	assert.Error(t, Verify(pub, []byte("tampered"), sig))
}

func TestAddressFormat(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pub.Address(), 40)
	assert.Len(t, pub.Hex(), 64)
}

func TestKeyHexRoundtrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	pub2, err := PubKeyFromHex(pub.Hex())
	require.NoError(t, err)
	assert.Equal(t, pub, pub2)

	priv2, err := PrivKeyFromHex(priv.Hex())
	require.NoError(t, err)
	assert.Equal(t, priv, priv2)
}

func TestPubKeyFromHexRejectsBadInput(t *testing.T) {
	_, err := PubKeyFromHex("zz")
	assert.Error(t, err)
	_, err = PubKeyFromHex("abcd") // valid hex, wrong length
	assert.Error(t, err)
}

func TestPublicDerivation(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, pub, priv.Public())
}
