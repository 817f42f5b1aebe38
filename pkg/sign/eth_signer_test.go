package sign

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEthereumSigner(t *testing.T) {
	t.Run("valid hex key", func(t *testing.T) {
		signer, err := NewEthereumSigner(testPrivKeyHex)
		require.NoError(t, err)
		assert.NotEmpty(t, signer.PublicKey().Address().String())
	})

	t.Run("0x prefix is tolerated", func(t *testing.T) {
		signer, err := NewEthereumSigner("0x" + testPrivKeyHex)
		require.NoError(t, err)
		assert.NotEmpty(t, signer.PublicKey().Address().String())
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := NewEthereumSigner("not-a-key")
		assert.Error(t, err)
	})
}

func TestEthereumSignAndRecover(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := &EthereumSigner{privateKey: key, publicKey: NewEthereumPublicKey(&key.PublicKey)}
	signerAddr := signer.PublicKey().Address()

	message := []byte("hello world")
	hash := HashEthereumMessage(message)

	sig, err := signer.Sign(hash)
	require.NoError(t, err)
	require.Len(t, []byte(sig), 65)
	// V is normalized to 27/28 on the way out.
	assert.GreaterOrEqual(t, sig[64], byte(27))

	t.Run("recover from hash", func(t *testing.T) {
		addr, err := RecoverEthereumAddressFromHash(hash, sig)
		require.NoError(t, err)
		assert.True(t, addr.Equals(signerAddr))
	})

	t.Run("recover via AddressRecoverer", func(t *testing.T) {
		recoverer := &EthereumAddressRecoverer{}
		addr, err := recoverer.RecoverAddress(message, sig)
		require.NoError(t, err)
		assert.True(t, addr.Equals(signerAddr))
	})

	t.Run("modified message recovers a different address", func(t *testing.T) {
		addr, err := RecoverEthereumAddressFromHash(HashEthereumMessage([]byte("hello, modified!")), sig)
		require.NoError(t, err)
		assert.False(t, addr.Equals(signerAddr))
	})

	t.Run("short signature is rejected", func(t *testing.T) {
		_, err := RecoverEthereumAddressFromHash(hash, sig[:64])
		assert.Error(t, err)
	})
}

func TestHashEthereumMessage(t *testing.T) {
	// The prefix commits to the message length, so equal-content messages of
	// different lengths never share a digest.
	assert.NotEqual(t, HashEthereumMessage([]byte("a")), HashEthereumMessage([]byte("aa")))
	assert.Equal(t, HashEthereumMessage([]byte("a")), HashEthereumMessage([]byte("a")))
	assert.NotEqual(t, HashEthereumMessage([]byte("a")), ethcrypto.Keccak256([]byte("a")))
}

func TestEthereumAddressEquality(t *testing.T) {
	a := NewEthereumAddressFromHex("0x1Be31A94361a391bBaFB2a4CCd704F57dc04d4bb")
	b := NewEthereumAddressFromHex("0x1be31a94361a391bbafb2a4ccd704f57dc04d4bb")
	c := NewEthereumAddressFromHex("0x0000000000000000000000000000000000000001")

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.True(t, a.Equals(NewMockAddress(a.String())))
}
