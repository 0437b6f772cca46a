// Package fees holds the pure fee-split arithmetic. Everything here is
// integer math on *big.Int; both ledgers must agree on it bit for bit.
package fees

import (
	"math/big"
)

// BpsDenominator is the basis-points scale: a rate of 10000 bps is 100%.
const BpsDenominator = 10000

// VerificationFee computes the protocol's cut of a gross amount:
// floor(amountIn * rateBps / 10000).
func VerificationFee(amountIn *big.Int, rateBps uint64) *big.Int {
	fee := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(rateBps))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}

// SolverRefund is the amount owed to the solver on the source ledger after
// it fulfills the request: the gross amount net of the protocol fee, plus
// the solver fee.
func SolverRefund(amountIn, verificationFee, solverFee *big.Int) *big.Int {
	refund := new(big.Int).Sub(amountIn, verificationFee)
	return refund.Add(refund, solverFee)
}

// Split returns (verificationFee, solverRefund) for a request creation.
// Conservation: amountIn + solverFee == verificationFee + solverRefund.
func Split(amountIn, solverFee *big.Int, rateBps uint64) (*big.Int, *big.Int) {
	fee := VerificationFee(amountIn, rateBps)
	return fee, SolverRefund(amountIn, fee, solverFee)
}
