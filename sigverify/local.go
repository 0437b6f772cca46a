package sigverify

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

// LocalSigner is a single-key stand-in for the threshold committee
// (simulation of multi-party). Production deployments replace it with the
// committee's own signing service; the verifier side cannot tell the
// difference.
type LocalSigner struct {
	sk        *btcec.PrivateKey
	domainTag string
}

// NewLocalSigner creates a signer from a 32-byte private key.
func NewLocalSigner(privKey []byte, domainTag string) (*LocalSigner, error) {
	sk, _ := btcec.PrivKeyFromBytes(privKey)
	return &LocalSigner{sk: sk, domainTag: domainTag}, nil
}

// NewRandomLocalSigner creates a signer with a freshly generated key.
func NewRandomLocalSigner(domainTag string) (*LocalSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &LocalSigner{sk: sk, domainTag: domainTag}, nil
}

// Sign produces a committee signature over the domain-tagged message.
func (ls *LocalSigner) Sign(message []byte) (*agreement.Signature, error) {
	sig, err := schnorr.Sign(ls.sk, TagMessage(ls.domainTag, message))
	if err != nil {
		return nil, err
	}

	raw := sig.Serialize()
	return &agreement.Signature{
		Rx: new(big.Int).SetBytes(raw[:32]),
		S:  new(big.Int).SetBytes(raw[32:]),
	}, nil
}

func (ls *LocalSigner) PubKeyX() [32]byte {
	return common.PubKeyX(ls.sk.PubKey())
}

// Verifier returns a verifier bound to this signer's key and domain tag.
func (ls *LocalSigner) Verifier() *SchnorrVerifier {
	return NewSchnorrVerifier(ls.PubKeyX(), ls.domainTag)
}
