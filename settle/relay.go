package settle

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/registry"
)

// RelayParams are the creation-time request fields a solver replays on the
// destination ledger. The destination engine never saw the request; it
// re-derives the id from these fields and rejects on any mismatch with the
// externally supplied id.
type RelayParams struct {
	Sender        ethcommon.Address
	Recipient     ethcommon.Address
	TokenIn       ethcommon.Address
	TokenOut      ethcommon.Address
	AmountOut     *big.Int
	SourceChainId *big.Int
	Nonce         uint64
	PreHooks      []agreement.Hook
	PostHooks     []agreement.Hook
}

// mirror reconstructs the request as it must have looked on the source
// ledger, with this engine's chain id as the destination.
func (p *RelayParams) mirror(localChainId *big.Int) *agreement.SwapRequest {
	return &agreement.SwapRequest{
		Sender:             p.Sender,
		Recipient:          p.Recipient,
		TokenIn:            p.TokenIn,
		TokenOut:           p.TokenOut,
		AmountOut:          p.AmountOut,
		SourceChainId:      p.SourceChainId,
		DestinationChainId: localChainId,
		Nonce:              p.Nonce,
		PreHooks:           p.PreHooks,
		PostHooks:          p.PostHooks,
	}
}

// RelayTokens fulfills a request on the destination ledger: the calling
// solver fronts amountOut of tokenOut to the recipient, the post-hooks run,
// and the id enters the fulfilled set with its receipt. Single-shot per
// request id, a second call fails regardless of its other parameters.
func (e *Engine) RelayTokens(solver ethcommon.Address, id ethcommon.Hash, p *RelayParams) error {
	return e.relay(solver, id, p, func() error {
		return e.vault.Transfer(p.TokenOut, solver, p.Recipient, p.AmountOut)
	})
}

// RelayTokensPermit2 is the permit-funded fulfillment variant: the solver's
// transfer is authorized by its pre-signed permit over the relay witness,
// which binds the request id, the recipient and the solver's opaque
// refund-address blob.
func (e *Engine) RelayTokensPermit2(solver ethcommon.Address, id ethcommon.Hash, p *RelayParams, refundBlob []byte, permitSig *agreement.Signature) error {
	if e.permit == nil {
		return ErrNoPermitRelay
	}
	witness := RelayWitness(id, p.Recipient, refundBlob)
	return e.relay(solver, id, p, func() error {
		return e.permit.PermitTransfer(p.TokenOut, solver, p.Recipient, p.AmountOut, witness, permitSig)
	})
}

func (e *Engine) relay(solver ethcommon.Address, id ethcommon.Hash, p *RelayParams, pay func() error) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if p.AmountOut == nil || p.AmountOut.Sign() <= 0 {
		return ErrZeroAmount
	}
	if p.SourceChainId == nil {
		return ErrChainMismatch
	}
	if derived := p.mirror(e.cfg.ChainId).RequestId(); derived != id {
		return ErrRequestIdMismatch
	}
	if p.SourceChainId.Cmp(e.cfg.ChainId) == 0 {
		return ErrSameChainRelay
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.clock.Now()
	err = tx.InsertReceipt(&agreement.FulfillmentReceipt{
		RequestId:          id,
		Solver:             solver,
		Recipient:          p.Recipient,
		TokenOut:           p.TokenOut,
		AmountOut:          p.AmountOut,
		SourceChainId:      p.SourceChainId,
		DestinationChainId: e.cfg.ChainId,
		FulfilledAt:        now,
	})
	if errors.Is(err, registry.ErrDuplicateReceipt) {
		return ErrAlreadyFulfilled
	}
	if err != nil {
		return err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvTokensRelayed,
		RequestId: id,
		Token:     p.TokenOut,
		Amount:    p.AmountOut,
		At:        now,
	})
	if err != nil {
		return err
	}

	// the id is already fulfilled in the pending tx; a hook that calls
	// back in is rejected by the re-entry sentinel
	if err := pay(); err != nil {
		return err
	}
	if len(p.PostHooks) > 0 {
		if e.gateway == nil {
			return ErrNoHookGateway
		}
		if err := e.gateway.Execute(p.PostHooks); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"solver":    solver.Hex(),
		"tokenOut":  p.TokenOut.Hex(),
		"amountOut": p.AmountOut.String(),
	}).Info("tokens relayed")

	return nil
}
