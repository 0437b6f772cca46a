// Package sigverify wraps the committee's schnorr scheme as the opaque
// "was this message approved by the quorum" capability. The engine consumes
// two independently keyed instances: one gating swap repayments, one gating
// upgrades. Each instance bakes its own domain-separation tag into the
// message it verifies, so a signature produced for one sub-protocol can
// never authorize the other.
package sigverify

import (
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

const (
	DomainSwap    = "CROSSFLOW_SWAP_V1"
	DomainUpgrade = "CROSSFLOW_UPGRADE_V1"
	DomainPermit  = "CROSSFLOW_PERMIT_V1"
)

// TagMessage binds a domain tag to a message. Signers and verifiers must
// apply the identical binding or nothing verifies.
func TagMessage(domainTag string, message []byte) []byte {
	return crypto.Keccak256(common.EncodePacked(domainTag, message))
}

// SchnorrVerifier verifies committee signatures under one domain tag. The
// committee key may be rotated by the engine's admin surface; rotation is
// itself signature-gated there, not here.
type SchnorrVerifier struct {
	mu        sync.RWMutex
	pubKeyX   [32]byte
	domainTag string
}

func NewSchnorrVerifier(pubKeyX [32]byte, domainTag string) *SchnorrVerifier {
	return &SchnorrVerifier{pubKeyX: pubKeyX, domainTag: domainTag}
}

// Verify implements agreement.SignatureVerifier.
func (v *SchnorrVerifier) Verify(message []byte, sig *agreement.Signature) bool {
	if sig == nil || sig.Rx == nil || sig.S == nil {
		return false
	}

	v.mu.RLock()
	pubKeyX := v.pubKeyX
	v.mu.RUnlock()

	return common.Verify(pubKeyX[:], TagMessage(v.domainTag, message), sig.Rx, sig.S)
}

// Rotate swaps in a new committee key. Signatures by the old committee stop
// verifying immediately.
func (v *SchnorrVerifier) Rotate(pubKeyX [32]byte) {
	v.mu.Lock()
	v.pubKeyX = pubKeyX
	v.mu.Unlock()
}

func (v *SchnorrVerifier) PubKeyX() [32]byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pubKeyX
}

func (v *SchnorrVerifier) DomainTag() string {
	return v.domainTag
}
