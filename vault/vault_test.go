package vault

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossflow-io/settle-go/common"
	"github.com/crossflow-io/settle-go/sigverify"
)

func TestSimVaultTransfer(t *testing.T) {
	v := NewSimVault()
	token := common.RandAddress()
	alice, bob := common.RandAddress(), common.RandAddress()

	v.Mint(token, alice, big.NewInt(100))

	require.NoError(t, v.Transfer(token, alice, bob, big.NewInt(30)))

	balance, err := v.BalanceOf(token, alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), balance)
	balance, err = v.BalanceOf(token, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), balance)

	assert.ErrorIs(t, v.Transfer(token, alice, bob, big.NewInt(1000)), ErrInsufficientBalance)

	v.FailNext = true
	assert.ErrorIs(t, v.Transfer(token, alice, bob, big.NewInt(1)), ErrTransferFailed)
	// injection is one-shot
	assert.NoError(t, v.Transfer(token, alice, bob, big.NewInt(1)))
}

func TestPermitTransfer(t *testing.T) {
	v := NewSimVault()
	p := NewPermitVault(v)

	token := common.RandAddress()
	owner, to := common.RandAddress(), common.RandAddress()
	v.Mint(token, owner, big.NewInt(100))

	signer, err := sigverify.NewRandomLocalSigner(sigverify.DomainPermit)
	require.NoError(t, err)
	p.RegisterOwner(owner, signer.PubKeyX())

	witness := ethcommon.BytesToHash(common.RandBytes(32))
	sig, err := signer.Sign(witness[:])
	require.NoError(t, err)

	require.NoError(t, p.PermitTransfer(token, owner, to, big.NewInt(40), witness, sig))
	balance, err := v.BalanceOf(token, to)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), balance)

	// a different witness invalidates the signature
	other := ethcommon.BytesToHash(common.RandBytes(32))
	assert.ErrorIs(t, p.PermitTransfer(token, owner, to, big.NewInt(1), other, sig), ErrInvalidPermitSig)

	// unregistered owner
	assert.ErrorIs(t, p.PermitTransfer(token, common.RandAddress(), to, big.NewInt(1), witness, sig), ErrUnknownOwner)

	// a permit-domain key signs nothing for the swap domain
	swapSigner, err := sigverify.NewRandomLocalSigner(sigverify.DomainSwap)
	require.NoError(t, err)
	p.RegisterOwner(owner, swapSigner.PubKeyX())
	badSig, err := swapSigner.Sign(witness[:])
	require.NoError(t, err)
	assert.ErrorIs(t, p.PermitTransfer(token, owner, to, big.NewInt(1), witness, badSig), ErrInvalidPermitSig)
}
