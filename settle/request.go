package settle

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/fees"
	"github.com/crossflow-io/settle-go/registry"
)

// SwapParams carries the caller-supplied request-creation parameters. The
// engine supplies the source chain id, the nonce, the verification fee and
// the creation time itself.
type SwapParams struct {
	TokenIn            ethcommon.Address
	TokenOut           ethcommon.Address
	AmountIn           *big.Int
	AmountOut          *big.Int
	SolverFee          *big.Int
	DestinationChainId *big.Int
	Recipient          ethcommon.Address
	PreHooks           []agreement.Hook
	PostHooks          []agreement.Hook
}

// RequestCrossChainSwap creates a swap request, funding custody with
// amountIn + solverFee pulled directly from the caller's vault balance.
// Returns the derived request id.
func (e *Engine) RequestCrossChainSwap(caller ethcommon.Address, p *SwapParams) (ethcommon.Hash, error) {
	return e.createRequest(caller, p, func(total *big.Int) error {
		return e.vault.Transfer(p.TokenIn, caller, e.cfg.Custody, total)
	})
}

// RequestCrossChainSwapPermit2 is the permit-funded variant: the value
// movement is authorized solely by the caller's pre-signed permit over the
// creation witness, with no prior approval.
func (e *Engine) RequestCrossChainSwapPermit2(caller ethcommon.Address, p *SwapParams, extraData []byte, permitSig *agreement.Signature) (ethcommon.Hash, error) {
	if e.permit == nil {
		return ethcommon.Hash{}, ErrNoPermitRelay
	}
	witness := CreationWitness(e.cfg.Custody, p, extraData)
	return e.createRequest(caller, p, func(total *big.Int) error {
		return e.permit.PermitTransfer(p.TokenIn, caller, e.cfg.Custody, total, witness, permitSig)
	})
}

func (e *Engine) createRequest(caller ethcommon.Address, p *SwapParams, pull func(total *big.Int) error) (ethcommon.Hash, error) {
	exit, err := e.enter()
	if err != nil {
		return ethcommon.Hash{}, err
	}
	defer exit()

	if err := e.validateSwapParams(p); err != nil {
		return ethcommon.Hash{}, err
	}

	verificationFee, refund := fees.Split(p.AmountIn, p.SolverFee, e.feeBps)
	total := new(big.Int).Add(p.AmountIn, p.SolverFee)

	tx, err := e.db.Begin()
	if err != nil {
		return ethcommon.Hash{}, err
	}
	defer tx.Rollback()

	nonce, err := tx.NextNonce()
	if err != nil {
		return ethcommon.Hash{}, err
	}

	now := e.clock.Now()
	req := &agreement.SwapRequest{
		Sender:             caller,
		Recipient:          p.Recipient,
		TokenIn:            p.TokenIn,
		TokenOut:           p.TokenOut,
		AmountOut:          p.AmountOut,
		SourceChainId:      e.cfg.ChainId,
		DestinationChainId: p.DestinationChainId,
		VerificationFee:    verificationFee,
		SolverFee:          p.SolverFee,
		Nonce:              nonce,
		RequestedAt:        now,
		PreHooks:           agreement.CloneHooks(p.PreHooks),
		PostHooks:          agreement.CloneHooks(p.PostHooks),
	}
	id := req.RequestId()

	err = tx.InsertRequest(&registry.RequestRecord{
		Request:      req,
		Status:       agreement.StatusUnfulfilled,
		RefundAmount: refund,
	})
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if err := tx.AddFeeBalance(p.TokenIn, verificationFee); err != nil {
		return ethcommon.Hash{}, err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvSwapRequested,
		RequestId: id,
		Token:     p.TokenIn,
		Amount:    total,
		At:        now,
	})
	if err != nil {
		return ethcommon.Hash{}, err
	}

	// bookkeeping is in the pending tx; external code runs last so a
	// failure (or a callback) leaves nothing behind
	if len(p.PreHooks) > 0 {
		if e.gateway == nil {
			return ethcommon.Hash{}, ErrNoHookGateway
		}
		if err := e.gateway.Execute(p.PreHooks); err != nil {
			return ethcommon.Hash{}, err
		}
	}
	if err := pull(total); err != nil {
		return ethcommon.Hash{}, err
	}

	if err := tx.Commit(); err != nil {
		return ethcommon.Hash{}, err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"sender":    caller.Hex(),
		"tokenIn":   p.TokenIn.Hex(),
		"total":     total.String(),
	}).Info("swap requested")

	return id, nil
}

func (e *Engine) validateSwapParams(p *SwapParams) error {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 ||
		p.AmountOut == nil || p.AmountOut.Sign() <= 0 {
		return ErrZeroAmount
	}
	if p.SolverFee == nil || p.SolverFee.Sign() <= 0 {
		return ErrZeroSolverFee
	}
	if p.Recipient == (ethcommon.Address{}) {
		return ErrZeroRecipient
	}
	if p.DestinationChainId == nil {
		return ErrChainNotAllowed
	}

	allowed, err := e.db.ChainAllowed(p.DestinationChainId)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrChainNotAllowed
	}

	routed, err := e.db.TokenRouteExists(p.TokenIn, p.DestinationChainId, p.TokenOut)
	if err != nil {
		return err
	}
	if !routed {
		return ErrUnknownTokenRoute
	}
	return nil
}

// UpdateSolverFeesIfUnfulfilled raises the solver fee of an unexecuted
// request. Only the original requester, only a strict increase; the delta
// moves from the caller into custody and the refund ledger entry grows by
// the same delta. The request id never changes, the solver fee is outside
// its derivation.
func (e *Engine) UpdateSolverFeesIfUnfulfilled(caller ethcommon.Address, id ethcommon.Hash, newFee *big.Int) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	rec, err := e.loadRequest(id)
	if err != nil {
		return err
	}
	if err := statusConflict(rec.Status); err != nil {
		return err
	}
	if caller != rec.Request.Sender {
		return ErrNotRequester
	}
	if newFee == nil || newFee.Cmp(rec.Request.SolverFee) <= 0 {
		return ErrSolverFeeNotRaised
	}

	delta := new(big.Int).Sub(newFee, rec.Request.SolverFee)
	newRefund := new(big.Int).Add(rec.RefundAmount, delta)

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.UpdateSolverFee(id, newFee, newRefund); err != nil {
		return err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvSolverFeeUpdated,
		RequestId: id,
		Token:     rec.Request.TokenIn,
		Amount:    newFee,
		At:        e.clock.Now(),
	})
	if err != nil {
		return err
	}

	if err := e.vault.Transfer(rec.Request.TokenIn, caller, e.cfg.Custody, delta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"solverFee": newFee.String(),
	}).Info("solver fee raised")

	return nil
}

// loadRequest maps the registry's nil-for-unseen contract into the engine
// taxonomy.
func (e *Engine) loadRequest(id ethcommon.Hash) (*registry.RequestRecord, error) {
	rec, err := e.db.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRequestNotFound
	}
	return rec, nil
}

// statusConflict translates a terminal membership status into the
// corresponding duplicate-submission error.
func statusConflict(status agreement.RequestStatus) error {
	switch status {
	case agreement.StatusFulfilled:
		return ErrAlreadyFulfilled
	case agreement.StatusCancelled:
		return ErrAlreadyCancelled
	}
	return nil
}
