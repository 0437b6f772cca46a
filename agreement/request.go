package agreement

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crossflow-io/settle-go/common"
)

// SwapRequest is the canonical request record. It is created once on the
// source ledger, mirrored (re-derived, never transmitted) on the destination
// ledger, and mutated only by a solver-fee increase before fulfillment and
// by the terminal transition that sets Executed.
type SwapRequest struct {
	Sender             ethcommon.Address
	Recipient          ethcommon.Address
	TokenIn            ethcommon.Address
	TokenOut           ethcommon.Address
	AmountOut          *big.Int // destination-side amount, net of protocol fee
	SourceChainId      *big.Int
	DestinationChainId *big.Int
	VerificationFee    *big.Int
	SolverFee          *big.Int
	Nonce              uint64
	Executed           bool
	RequestedAt        uint64 // ledger time at creation
	PreHooks           []Hook
	PostHooks          []Hook
}

// RequestId derives the request's primary key from its immutable fields.
// Both engines must derive identical ids from identical inputs without
// communicating, so only creation-time-fixed fields participate; the hook
// lists participate through their digests. SolverFee is deliberately
// excluded: it may increase while the request is unfulfilled.
func (r *SwapRequest) RequestId() ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		r.Sender,
		r.Recipient,
		r.TokenIn,
		r.TokenOut,
		r.AmountOut,
		r.SourceChainId,
		r.DestinationChainId,
		r.Nonce,
		HashHooks(r.PreHooks),
		HashHooks(r.PostHooks),
	))
}

// RebalanceSigningHash reconstructs the exact message the committee signs to
// authorize repaying a solver on the source ledger. Any mismatch in any
// field invalidates the signature.
func (r *SwapRequest) RebalanceSigningHash(solver ethcommon.Address) ethcommon.Hash {
	return crypto.Keccak256Hash(common.EncodePacked(
		solver,
		r.Sender,
		r.Recipient,
		r.TokenIn,
		r.TokenOut,
		r.AmountOut,
		r.SourceChainId,
		r.DestinationChainId,
		r.Nonce,
		HashHooks(r.PreHooks),
		HashHooks(r.PostHooks),
	))
}

func (r *SwapRequest) Clone() *SwapRequest {
	clone := &SwapRequest{
		Sender:             r.Sender,
		Recipient:          r.Recipient,
		TokenIn:            r.TokenIn,
		TokenOut:           r.TokenOut,
		AmountOut:          common.BigIntClone(r.AmountOut),
		SourceChainId:      common.BigIntClone(r.SourceChainId),
		DestinationChainId: common.BigIntClone(r.DestinationChainId),
		VerificationFee:    common.BigIntClone(r.VerificationFee),
		SolverFee:          common.BigIntClone(r.SolverFee),
		Nonce:              r.Nonce,
		Executed:           r.Executed,
		RequestedAt:        r.RequestedAt,
		PreHooks:           CloneHooks(r.PreHooks),
		PostHooks:          CloneHooks(r.PostHooks),
	}
	return clone
}

func (r *SwapRequest) Equal(other *SwapRequest) bool {
	if r.Sender != other.Sender ||
		r.Recipient != other.Recipient ||
		r.TokenIn != other.TokenIn ||
		r.TokenOut != other.TokenOut ||
		r.Nonce != other.Nonce ||
		r.Executed != other.Executed ||
		r.RequestedAt != other.RequestedAt {
		return false
	}

	if r.AmountOut.Cmp(other.AmountOut) != 0 ||
		r.SourceChainId.Cmp(other.SourceChainId) != 0 ||
		r.DestinationChainId.Cmp(other.DestinationChainId) != 0 ||
		r.VerificationFee.Cmp(other.VerificationFee) != 0 ||
		r.SolverFee.Cmp(other.SolverFee) != 0 {
		return false
	}

	return HashHooks(r.PreHooks) == HashHooks(other.PreHooks) &&
		HashHooks(r.PostHooks) == HashHooks(other.PostHooks)
}

func (r *SwapRequest) String() string {
	return fmt.Sprintf("%+v", *r)
}
