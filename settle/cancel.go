package settle

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
)

// StageSwapRequestCancellation starts the cancellation clock for an
// unexecuted request. Only the requester, only once; the refund itself
// becomes possible after the cancellation window elapses, which gives an
// in-flight solver time to finish.
func (e *Engine) StageSwapRequestCancellation(caller ethcommon.Address, id ethcommon.Hash) error {
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
	if rec.CancelStagedAt != 0 {
		return ErrCancelAlreadyStaged
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.clock.Now()
	if err := tx.StageCancellation(id, now); err != nil {
		return err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvCancelStaged,
		RequestId: id,
		Token:     rec.Request.TokenIn,
		At:        now,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"stagedAt":  now,
	}).Info("cancellation staged")

	return nil
}

// CancelSwapRequestAndRefund executes a staged cancellation once the window
// has elapsed. The requester gets back exactly what creation took: the
// refund ledger entry plus the reserved verification fee, which is released
// from the fee balance instead of going to the protocol. The id turns
// cancelled, a set it can never leave and which is distinct from fulfilled.
func (e *Engine) CancelSwapRequestAndRefund(caller ethcommon.Address, id ethcommon.Hash, refundRecipient ethcommon.Address) error {
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
	if rec.CancelStagedAt == 0 {
		return ErrCancelNotStaged
	}

	now := e.clock.Now()
	if now < rec.CancelStagedAt+e.cfg.CancellationWindow {
		return ErrWindowNotElapsed
	}

	refund := new(big.Int).Add(rec.RefundAmount, rec.Request.VerificationFee)

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.MarkCancelled(id); err != nil {
		return err
	}
	if err := tx.SubFeeBalance(rec.Request.TokenIn, rec.Request.VerificationFee); err != nil {
		return err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvSwapCancelled,
		RequestId: id,
		Token:     rec.Request.TokenIn,
		Amount:    refund,
		At:        now,
	})
	if err != nil {
		return err
	}

	if err := e.vault.Transfer(rec.Request.TokenIn, e.cfg.Custody, refundRecipient, refund); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"recipient": refundRecipient.Hex(),
		"refund":    refund.String(),
	}).Info("swap cancelled and refunded")

	return nil
}
