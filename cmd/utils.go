package cmd

import (
	"encoding/hex"
	"errors"
	"os"

	"github.com/crossflow-io/settle-go/common"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// ParsePubKeyX decodes a hex-encoded 32-byte x-only schnorr public key.
func ParsePubKeyX(s string) ([32]byte, error) {
	raw, err := hex.DecodeString(common.Trim0xPrefix(s))
	if err != nil {
		return [32]byte{}, err
	}
	if len(raw) != 32 {
		return [32]byte{}, errors.New("pubkey x must be 32 bytes")
	}
	var out [32]byte
	copy(out[:], raw)
	return out, nil
}
