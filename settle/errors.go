package settle

import "errors"

// Validation errors: caller-correctable, no state change.
var (
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrZeroSolverFee      = errors.New("solver fee must be positive")
	ErrZeroRecipient      = errors.New("recipient must not be the zero address")
	ErrChainNotAllowed    = errors.New("destination chain id not permitted")
	ErrUnknownTokenRoute  = errors.New("no token mapping for (tokenIn, destinationChainId, tokenOut)")
	ErrSolverFeeNotRaised = errors.New("new solver fee must strictly increase the current one")
	ErrWindowNotElapsed   = errors.New("cancellation window has not elapsed")
)

// Authorization errors: always fatal to the call, no partial effect.
var (
	ErrInvalidSignature = errors.New("threshold signature verification failed")
	ErrNotRequester     = errors.New("caller is not the original requester")
	ErrNotAdmin         = errors.New("caller is not the admin")
	ErrChainMismatch    = errors.New("engine chain id does not match the request")
	ErrSameChainRelay   = errors.New("relay rejected: request originates on this chain")
	ErrStaleNonce       = errors.New("governance nonce not strictly increasing")
)

// State-conflict errors: a race or duplicate submission; terminal for the
// request id, not retryable.
var (
	ErrRequestNotFound     = errors.New("unknown request id")
	ErrRequestIdMismatch   = errors.New("supplied request id does not match derived id")
	ErrAlreadyFulfilled    = errors.New("request already fulfilled")
	ErrAlreadyCancelled    = errors.New("request already cancelled")
	ErrCancelAlreadyStaged = errors.New("cancellation already staged")
	ErrCancelNotStaged     = errors.New("cancellation has not been staged")
	ErrReentrantCall       = errors.New("re-entrant engine call")
)

// Configuration errors.
var (
	ErrNoHookGateway        = errors.New("no hook gateway configured")
	ErrNoPermitRelay        = errors.New("no permit relay configured")
	ErrVerifierNotRotatable = errors.New("active verifier does not support key rotation")
)
