package common

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Verify checks a schnorr signature (rx, s) over message against the
// committee public key given as its 32-byte x coordinate. The threshold
// quorum is opaque to the caller: a valid signature proves the quorum
// approved exactly this message, nothing more.
func Verify(pubKeyX []byte, message []byte, rx, s *big.Int) bool {
	if len(pubKeyX) != 32 {
		return false
	}

	pubKey, err := schnorr.ParsePubKey(pubKeyX)
	if err != nil {
		return false
	}

	var raw [64]byte
	rx.FillBytes(raw[:32])
	s.FillBytes(raw[32:])

	sig, err := schnorr.ParseSignature(raw[:])
	if err != nil {
		return false
	}

	return sig.Verify(message, pubKey)
}

// PubKeyX returns the 32-byte x coordinate of a btcec public key, the form
// in which committee keys are stored and rotated.
func PubKeyX(pubKey *btcec.PublicKey) [32]byte {
	var x [32]byte
	pubKey.X().FillBytes(x[:])
	return x
}
