package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerificationFeeFloors(t *testing.T) {
	// 10 units at 500 bps = 0.5 units; with 8-decimal token precision
	// (1 unit = 1e8) the fee is exact.
	amountIn := big.NewInt(10_0000_0000)
	fee := VerificationFee(amountIn, 500)
	assert.Equal(t, big.NewInt(5000_0000), fee)

	// division floors
	assert.Equal(t, big.NewInt(0), VerificationFee(big.NewInt(19), 500))
	assert.Equal(t, big.NewInt(1), VerificationFee(big.NewInt(20), 500))

	assert.Equal(t, big.NewInt(0), VerificationFee(big.NewInt(123456), 0))
}

func TestSplitConservation(t *testing.T) {
	amountIn := big.NewInt(10_0000_0000)
	solverFee := big.NewInt(1_0000_0000)

	fee, refund := Split(amountIn, solverFee, 500)
	assert.Equal(t, big.NewInt(5000_0000), fee)
	// (10 - 0.5) + 1 = 10.5
	assert.Equal(t, big.NewInt(10_5000_0000), refund)

	total := new(big.Int).Add(amountIn, solverFee)
	assert.Equal(t, total, new(big.Int).Add(fee, refund))
}
