package settle

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
)

// RebalanceSolver repays a solver on the source ledger after the committee
// attested to the fulfillment. The signed message is reconstructed from the
// stored request, never taken from the caller, so the signature only ever
// authorizes repaying exactly this request to exactly this solver. On
// success the id turns fulfilled, the hook lists are dropped and the
// refund ledger entry is paid out and consumed.
func (e *Engine) RebalanceSolver(solver ethcommon.Address, id ethcommon.Hash, sig *agreement.Signature) error {
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
	if rec.Request.SourceChainId.Cmp(e.cfg.ChainId) != 0 {
		return ErrChainMismatch
	}

	// verified exactly once per call
	msg := rec.Request.RebalanceSigningHash(solver)
	if !e.swapVerifier.Verify(msg[:], sig) {
		return ErrInvalidSignature
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.MarkFulfilled(id); err != nil {
		return err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:      agreement.EvSolverRebalanced,
		RequestId: id,
		Token:     rec.Request.TokenIn,
		Amount:    rec.RefundAmount,
		At:        e.clock.Now(),
	})
	if err != nil {
		return err
	}

	if err := e.vault.Transfer(rec.Request.TokenIn, e.cfg.Custody, solver, rec.RefundAmount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	publish()

	logger.WithFields(logger.Fields{
		"requestId": id.Hex(),
		"solver":    solver.Hex(),
		"refund":    rec.RefundAmount.String(),
	}).Info("solver rebalanced")

	return nil
}
