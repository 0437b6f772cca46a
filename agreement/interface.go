package agreement

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// SignatureVerifier is the opaque threshold-quorum oracle. A true result
// means the verifier's committee jointly signed exactly this message under
// the verifier's own domain-separation tag. Two independent instances exist:
// one for swap authorization, one for upgrade governance.
type SignatureVerifier interface {
	Verify(message []byte, sig *Signature) bool
}

// TokenVault is the consumed value-transfer primitive. A failed transfer
// aborts the enclosing engine call with no partial bookkeeping.
type TokenVault interface {
	Transfer(token, from, to ethcommon.Address, amount *big.Int) error
	BalanceOf(token, owner ethcommon.Address) (*big.Int, error)
}

// PermitRelay is the consumed permit-based transfer primitive. The transfer
// is authorized solely by the owner's signature over the witness: if any
// witness field differs from what the owner signed, the relay must reject.
type PermitRelay interface {
	PermitTransfer(token, owner, to ethcommon.Address, amount *big.Int, witness ethcommon.Hash, sig *Signature) error
}

// HookGateway executes an ordered hook list, each call under its own gas
// bound, aborting the whole batch on the first failure.
type HookGateway interface {
	Execute(hooks []Hook) error
}

// EngineCode is the replaceable strategy object the Scheduled Upgrade
// Controller swaps. State stays in the registry; code is this pointer,
// selected at call time.
type EngineCode interface {
	Version() string
	// Init runs the upgrade's initialization payload. An error aborts the
	// whole upgrade.
	Init(payload []byte) error
}

// Clock supplies ledger time. Time-window preconditions (cancellation
// window, upgrade delay) re-check it on every call; nothing blocks on it.
type Clock interface {
	Now() uint64
}
