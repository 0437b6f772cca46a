package settle

import (
	"database/sql"
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
)

func (e *Engine) requireAdmin(caller ethcommon.Address) error {
	if caller != e.cfg.Admin {
		return ErrNotAdmin
	}
	return nil
}

// SetFeeBps changes the verification-fee rate. Existing requests keep the
// fee computed at their creation; only new creations see the rate.
func (e *Engine) SetFeeBps(caller ethcommon.Address, bps uint64) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	if err := e.db.KVSet([32]byte(KeyFeeBps), u64kv(bps)); err != nil {
		return err
	}
	e.feeBps = bps

	logger.WithField("feeBps", bps).Info("verification fee rate changed")
	return nil
}

// SetChainAllowed permits or blocks a destination chain id for new
// requests.
func (e *Engine) SetChainAllowed(caller ethcommon.Address, chainId *big.Int, allowed bool) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.SetChainAllowed(chainId, allowed); err != nil {
		return err
	}
	return tx.Commit()
}

// AddTokenRoute registers a (tokenIn, destinationChainId, tokenOut)
// mapping.
func (e *Engine) AddTokenRoute(caller ethcommon.Address, tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address) error {
	return e.editTokenRoute(caller, tokenIn, destinationChainId, tokenOut, true)
}

// RemoveTokenRoute removes a token mapping. Existing requests are
// unaffected, the route is only checked at creation.
func (e *Engine) RemoveTokenRoute(caller ethcommon.Address, tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address) error {
	return e.editTokenRoute(caller, tokenIn, destinationChainId, tokenOut, false)
}

func (e *Engine) editTokenRoute(caller ethcommon.Address, tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address, add bool) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if add {
		err = tx.AddTokenRoute(tokenIn, destinationChainId, tokenOut)
	} else {
		err = tx.RemoveTokenRoute(tokenIn, destinationChainId, tokenOut)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// WithdrawFees pays the full accumulated fee balance of a token out of
// custody to the given recipient and journals the withdrawal. A zero
// balance withdraws nothing and succeeds.
func (e *Engine) WithdrawFees(caller ethcommon.Address, token ethcommon.Address, to ethcommon.Address) (*big.Int, error) {
	exit, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}

	balance, err := e.db.FeeBalance(token)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return balance, nil
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := tx.SubFeeBalance(token, balance); err != nil {
		return nil, err
	}

	publish, err := e.journal(tx, &agreement.Event{
		Kind:   agreement.EvFeesWithdrawn,
		Token:  token,
		Amount: balance,
		At:     e.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := e.vault.Transfer(token, e.cfg.Custody, to, balance); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	publish()

	logger.WithFields(logger.Fields{
		"token":  token.Hex(),
		"to":     to.Hex(),
		"amount": balance.String(),
	}).Info("fees withdrawn")

	return balance, nil
}

// SetHookGateway configures the gateway hooks execute through. Until one is
// set, any request or relay carrying hooks fails.
func (e *Engine) SetHookGateway(caller ethcommon.Address, gateway agreement.HookGateway) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.gateway = gateway
	return nil
}

// RotateSwapVerifier replaces the committee key gating solver repayments.
// The current committee must sign the rotation message (old key, new key,
// nonce) and the nonce must strictly increase, so a recorded authorization
// can never be replayed.
func (e *Engine) RotateSwapVerifier(caller ethcommon.Address, newPubKeyX [32]byte, nonce uint64, sig *agreement.Signature) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.requireAdmin(caller); err != nil {
		return err
	}

	verifier, ok := e.swapVerifier.(rotatable)
	if !ok {
		return ErrVerifierNotRotatable
	}
	oldPubKeyX := verifier.PubKeyX()

	last, err := e.rotateNonce()
	if err != nil {
		return err
	}
	if nonce <= last {
		return ErrStaleNonce
	}

	if !e.swapVerifier.Verify(rotateMessage(oldPubKeyX, newPubKeyX, nonce), sig) {
		return ErrInvalidSignature
	}

	tx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.KVSet([32]byte(KeyRotateNonce), u64kv(nonce)); err != nil {
		return err
	}
	publish, err := e.journal(tx, &agreement.Event{
		Kind: agreement.EvValidatorRotated,
		At:   e.clock.Now(),
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	verifier.Rotate(newPubKeyX)
	publish()

	logger.WithField("nonce", nonce).Info("swap verifier rotated")
	return nil
}

// rotatable is what a swap verifier must expose for key rotation.
type rotatable interface {
	PubKeyX() [32]byte
	Rotate(pubKeyX [32]byte)
}

func (e *Engine) rotateNonce() (uint64, error) {
	stored, err := e.db.KVGet([32]byte(KeyRotateNonce))
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(stored[24:]), nil
}

func u64kv(v uint64) [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}
