package settle

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crossflow-io/settle-go/common"
)

// CreationWitness is the message a permit signer attests to when funding a
// request creation without a prior approval: the router (custody account)
// and every economic parameter of the request, plus the digest of a
// caller-supplied opaque blob. The engine re-derives the witness from the
// call's actual parameters, so the permit stops verifying if any bound
// field differs from what was signed.
func CreationWitness(router ethcommon.Address, p *SwapParams, extraData []byte) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		router,
		p.TokenIn,
		p.TokenOut,
		p.AmountIn,
		p.AmountOut,
		p.SolverFee,
		p.DestinationChainId,
		p.Recipient,
		crypto.Keccak256Hash(extraData),
	))
}

// RelayWitness binds a permit-signed fulfillment transfer to the request
// id, the recipient, and the digest of the solver's opaque refund-address
// blob.
func RelayWitness(requestId ethcommon.Hash, recipient ethcommon.Address, refundBlob []byte) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		requestId,
		recipient,
		crypto.Keccak256Hash(refundBlob),
	))
}
