// Global agreement on protocol types.
//
// Both engine instances (source and destination ledger) and every off-ledger
// observer (solvers, the signing committee, the reporter) share these types.
// The two engines never communicate, so everything derived here must be
// reproducible from the fields alone.

package agreement

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crossflow-io/settle-go/common"
)

// Hook is one bounded-gas external call executed as part of request creation
// (pre) or fulfillment (post).
type Hook struct {
	Target   ethcommon.Address
	Payload  []byte
	GasLimit uint64
}

// HashHooks digests an ordered hook list. Signed messages and request ids
// carry this digest instead of the raw hook bytes to bound message size.
// The empty list hashes to keccak256 of the empty string, which is still a
// fixed, non-zero commitment.
func HashHooks(hooks []Hook) ethcommon.Hash {
	var packed []interface{}
	for _, h := range hooks {
		packed = append(packed, h.Target, crypto.Keccak256Hash(h.Payload), h.GasLimit)
	}
	return crypto.Keccak256Hash(common.EncodePacked(packed...))
}

// CloneHooks deep-copies a hook list.
func CloneHooks(hooks []Hook) []Hook {
	if hooks == nil {
		return nil
	}
	clone := make([]Hook, len(hooks))
	for i, h := range hooks {
		clone[i] = Hook{
			Target:   h.Target,
			Payload:  append([]byte(nil), h.Payload...),
			GasLimit: h.GasLimit,
		}
	}
	return clone
}

// Signature is a 64-byte schnorr signature split into its (Rx, S) halves,
// the form in which the committee publishes it.
type Signature struct {
	Rx *big.Int
	S  *big.Int
}

func (s *Signature) String() string {
	return fmt.Sprintf("sig{rx=%s, s=%s}",
		common.Shorten(common.BigIntToHexStr(s.Rx), 6),
		common.Shorten(common.BigIntToHexStr(s.S), 6))
}

// RequestStatus is the membership set a request id currently belongs to.
// Every created id is in exactly one of {unfulfilled, fulfilled, cancelled};
// fulfilled and cancelled are terminal.
type RequestStatus string

const (
	StatusUnfulfilled RequestStatus = "unfulfilled"
	StatusFulfilled   RequestStatus = "fulfilled"
	StatusCancelled   RequestStatus = "cancelled"
)

// FulfillmentReceipt is written once by the destination-ledger relay call
// and never mutated afterwards.
type FulfillmentReceipt struct {
	RequestId          ethcommon.Hash
	Solver             ethcommon.Address
	Recipient          ethcommon.Address
	TokenOut           ethcommon.Address
	AmountOut          *big.Int
	SourceChainId      *big.Int
	DestinationChainId *big.Int
	FulfilledAt        uint64
}

func (r *FulfillmentReceipt) String() string {
	return fmt.Sprintf("%+v", *r)
}

// EventKind tags a journal entry. The journal is the sole mechanism for
// off-ledger observers to learn of new work.
type EventKind string

const (
	EvSwapRequested     EventKind = "swap_requested"
	EvSolverFeeUpdated  EventKind = "solver_fee_updated"
	EvTokensRelayed     EventKind = "tokens_relayed"
	EvSolverRebalanced  EventKind = "solver_rebalanced"
	EvCancelStaged      EventKind = "cancel_staged"
	EvSwapCancelled     EventKind = "swap_cancelled"
	EvFeesWithdrawn     EventKind = "fees_withdrawn"
	EvValidatorRotated  EventKind = "validator_rotated"
	EvUpgradeScheduled  EventKind = "upgrade_scheduled"
	EvUpgradeCancelled  EventKind = "upgrade_cancelled"
	EvUpgradeExecuted   EventKind = "upgrade_executed"
	EvUpgradeKeyRotated EventKind = "upgrade_key_rotated"
)

// Event is one append-only journal entry. Seq is assigned by the registry
// and strictly increases per engine instance.
type Event struct {
	Seq       uint64            `json:"seq"`
	Kind      EventKind         `json:"kind"`
	RequestId ethcommon.Hash    `json:"request_id"`
	Token     ethcommon.Address `json:"token"`
	Amount    *big.Int          `json:"amount"`
	At        uint64            `json:"at"`
}

func (ev *Event) String() string {
	return fmt.Sprintf("%+v", *ev)
}
