package sigverify

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	signer, err := NewRandomLocalSigner(DomainSwap)
	require.NoError(t, err)
	verifier := signer.Verifier()

	msg := crypto.Keccak256([]byte("payload"))
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	assert.True(t, verifier.Verify(msg, sig))
	assert.False(t, verifier.Verify(crypto.Keccak256([]byte("other")), sig))
	assert.False(t, verifier.Verify(msg, nil))
}

func TestDomainSeparation(t *testing.T) {
	signer, err := NewRandomLocalSigner(DomainSwap)
	require.NoError(t, err)

	msg := crypto.Keccak256([]byte("payload"))
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	// same key, different domain: the swap signature must not authorize
	// upgrade governance
	upgradeVerifier := NewSchnorrVerifier(signer.PubKeyX(), DomainUpgrade)
	assert.False(t, upgradeVerifier.Verify(msg, sig))
}

func TestRotate(t *testing.T) {
	oldSigner, err := NewRandomLocalSigner(DomainSwap)
	require.NoError(t, err)
	newSigner, err := NewRandomLocalSigner(DomainSwap)
	require.NoError(t, err)

	verifier := oldSigner.Verifier()
	msg := crypto.Keccak256([]byte("payload"))
	oldSig, err := oldSigner.Sign(msg)
	require.NoError(t, err)
	newSig, err := newSigner.Sign(msg)
	require.NoError(t, err)

	assert.True(t, verifier.Verify(msg, oldSig))
	assert.False(t, verifier.Verify(msg, newSig))

	verifier.Rotate(newSigner.PubKeyX())
	assert.False(t, verifier.Verify(msg, oldSig))
	assert.True(t, verifier.Verify(msg, newSig))
}
