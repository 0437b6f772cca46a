package vault

import (
	"errors"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
	"github.com/crossflow-io/settle-go/sigverify"
)

var (
	ErrUnknownOwner     = errors.New("owner has no registered permit key")
	ErrInvalidPermitSig = errors.New("permit signature invalid for witness")
)

// PermitVault is the permit-based authorization relay: it moves tokens out
// of an owner's balance with no prior approval, authorized solely by the
// owner's signature over the transfer witness. The witness binds every
// field the signer attested to; the engine re-derives it, so a signature
// becomes invalid if any bound field differs from what was signed.
type PermitVault struct {
	vault agreement.TokenVault

	mu   sync.RWMutex
	keys map[ethcommon.Address][32]byte // owner -> schnorr pubkey x
}

func NewPermitVault(vault agreement.TokenVault) *PermitVault {
	return &PermitVault{
		vault: vault,
		keys:  make(map[ethcommon.Address][32]byte),
	}
}

// RegisterOwner binds an owner address to its permit signing key.
func (p *PermitVault) RegisterOwner(owner ethcommon.Address, pubKeyX [32]byte) {
	p.mu.Lock()
	p.keys[owner] = pubKeyX
	p.mu.Unlock()
}

// PermitTransfer implements agreement.PermitRelay.
func (p *PermitVault) PermitTransfer(token, owner, to ethcommon.Address, amount *big.Int, witness ethcommon.Hash, sig *agreement.Signature) error {
	p.mu.RLock()
	pubKeyX, ok := p.keys[owner]
	p.mu.RUnlock()
	if !ok {
		return ErrUnknownOwner
	}

	if sig == nil || sig.Rx == nil || sig.S == nil {
		return ErrInvalidPermitSig
	}

	tagged := sigverify.TagMessage(sigverify.DomainPermit, witness[:])
	if !common.Verify(pubKeyX[:], tagged, sig.Rx, sig.S) {
		return ErrInvalidPermitSig
	}

	return p.vault.Transfer(token, owner, to, amount)
}
