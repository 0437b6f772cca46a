package common

import (
	"bytes"
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// EncodePacked concatenates the tightly packed byte representation of the
// given values, mirroring solidity's abi.encodePacked. Every signing hash in
// the protocol is keccak256 over an EncodePacked message, so the set of
// supported types below is the closed set of field types that may appear in
// a signed message. Field order is fixed per message kind; reordering or
// omitting a field is a breaking protocol change.
func EncodePacked(values ...interface{}) []byte {
	var parts [][]byte
	for _, value := range values {
		switch v := value.(type) {
		case []byte:
			parts = append(parts, v)
		case [32]byte:
			parts = append(parts, v[:])
		case ethcommon.Hash:
			parts = append(parts, v[:])
		case ethcommon.Address:
			parts = append(parts, v[:])
		case *big.Int:
			parts = append(parts, math.U256Bytes(new(big.Int).Set(v)))
		case uint64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], v)
			parts = append(parts, b[:])
		case string:
			parts = append(parts, []byte(v))
		case []ethcommon.Hash:
			for _, h := range v {
				parts = append(parts, h[:])
			}
		case []ethcommon.Address:
			for _, a := range v {
				parts = append(parts, a[:])
			}
		case []*big.Int:
			for _, n := range v {
				parts = append(parts, math.U256Bytes(new(big.Int).Set(n)))
			}
		}
	}
	return bytes.Join(parts, nil)
}
