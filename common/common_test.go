package common

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexRoundTrip(t *testing.T) {
	b := RandBytes32()
	assert.Equal(t, b, HexStrToBytes32(Bytes32ToHexStr(b)))

	n := RandBigInt(16)
	assert.Equal(t, n, HexStrToBigInt(BigIntToHexStr(n)))

	assert.Equal(t, "deadbeef", Trim0xPrefix("0xdeadbeef"))
	assert.Equal(t, "0xdeadbeef", Prepend0xPrefix("deadbeef"))
}

func TestEncodePacked(t *testing.T) {
	addr := RandAddress()
	amount := big.NewInt(1234)
	var hash [32]byte
	copy(hash[:], crypto.Keccak256([]byte("x")))

	packed := EncodePacked(addr, amount, hash, uint64(7))
	assert.Len(t, packed, 20+32+32+8)
	assert.Equal(t, addr.Bytes(), packed[:20])
	assert.Equal(t, hash[:], packed[52:84])

	// packing is order sensitive
	assert.NotEqual(t,
		crypto.Keccak256Hash(EncodePacked(addr, amount)),
		crypto.Keccak256Hash(EncodePacked(amount, addr)),
	)
}

func TestEncodePackedHashSlice(t *testing.T) {
	h1 := ethcommon.BytesToHash(RandBytes(32))
	h2 := ethcommon.BytesToHash(RandBytes(32))
	packed := EncodePacked([]ethcommon.Hash{h1, h2})
	assert.Equal(t, append(h1.Bytes(), h2.Bytes()...), packed)
}

func TestVerify(t *testing.T) {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	msg := crypto.Keccak256([]byte("message"))
	sig, err := schnorr.Sign(sk, msg)
	require.NoError(t, err)

	raw := sig.Serialize()
	rx := new(big.Int).SetBytes(raw[:32])
	s := new(big.Int).SetBytes(raw[32:])

	pkx := PubKeyX(sk.PubKey())
	assert.True(t, Verify(pkx[:], msg, rx, s))

	// flipping a single message byte invalidates the signature
	msg[0] ^= 0x01
	assert.False(t, Verify(pkx[:], msg, rx, s))
	msg[0] ^= 0x01
	assert.True(t, Verify(pkx[:], msg, rx, s))

	// a different key never verifies
	sk2, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkx2 := PubKeyX(sk2.PubKey())
	assert.False(t, Verify(pkx2[:], msg, rx, s))
}
