package registry

import (
	"database/sql"
	"encoding/binary"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

// KeyRequestNonce indexes the monotonic request nonce in the kv table.
var KeyRequestNonce = crypto.Keccak256Hash([]byte("requestNonce"))

// Tx groups the writes of one engine call. The engine commits only after
// every external interaction of the call succeeded, which gives each call
// its all-or-nothing property.
type Tx struct {
	tx *sql.Tx
}

func (r *RegistryDB) Begin() (*Tx, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// NextNonce allocates the next request nonce. The counter lives in the kv
// table so it survives restarts; the read-modify-write is safe because the
// engine serializes calls.
func (t *Tx) NextNonce() (uint64, error) {
	var stored [32]byte
	var value string
	err := t.tx.QueryRow(`SELECT value FROM kv WHERE key = ?`,
		ethcommon.Bytes2Hex(KeyRequestNonce[:])).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	if err == nil {
		stored = common.HexStrToBytes32(value)
	}

	nonce := binary.BigEndian.Uint64(stored[24:])

	var next [32]byte
	binary.BigEndian.PutUint64(next[24:], nonce+1)
	_, err = t.tx.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`,
		ethcommon.Bytes2Hex(KeyRequestNonce[:]), ethcommon.Bytes2Hex(next[:]))
	if err != nil {
		return 0, err
	}

	return nonce, nil
}

func (t *Tx) KVSet(key, value [32]byte) error {
	_, err := t.tx.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`,
		ethcommon.Bytes2Hex(key[:]), ethcommon.Bytes2Hex(value[:]))
	return err
}

// InsertRequest stores a freshly created request as unfulfilled. A second
// insert of the same id fails.
func (t *Tx) InsertRequest(rec *RequestRecord) error {
	s, err := encodeRequest(rec)
	if err != nil {
		return err
	}

	res, err := t.tx.Exec(`INSERT OR IGNORE INTO membership (requestId, status)
		VALUES (?, ?)`, s.RequestId, string(agreement.StatusUnfulfilled))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrDuplicateRequest
	}

	_, err = t.tx.Exec(`INSERT INTO swap_request (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RequestId, s.Sender, s.Recipient, s.TokenIn, s.TokenOut,
		s.AmountOut, s.SourceChainId, s.DestinationChainId,
		s.VerificationFee, s.SolverFee, s.Nonce, s.Executed, s.RequestedAt,
		s.PreHooks, s.PostHooks, s.RefundAmount, s.CancelStagedAt)
	return err
}

// UpdateSolverFee applies a fee increase to an unexecuted request and its
// refund ledger entry in one step.
func (t *Tx) UpdateSolverFee(id ethcommon.Hash, newFee, newRefund *big.Int) error {
	res, err := t.tx.Exec(`UPDATE swap_request
		SET solverFee = ?, refundAmount = ?
		WHERE requestId = ? AND executed = 0`,
		bigHex(newFee), bigHex(newRefund), hashHex(id))
	if err != nil {
		return err
	}
	return oneRow(res, ErrRequestNotFound)
}

// StageCancellation records the cancellation staging time.
func (t *Tx) StageCancellation(id ethcommon.Hash, at uint64) error {
	res, err := t.tx.Exec(`UPDATE swap_request SET cancelStagedAt = ?
		WHERE requestId = ? AND executed = 0 AND cancelStagedAt IS NULL`,
		at, hashHex(id))
	if err != nil {
		return err
	}
	return oneRow(res, ErrRequestNotFound)
}

// MarkFulfilled performs the terminal unfulfilled -> fulfilled transition
// on the source ledger: executed flag set, hook lists deleted, refund
// ledger entry consumed. Guarded so a second arrival fails.
func (t *Tx) MarkFulfilled(id ethcommon.Hash) error {
	return t.markTerminal(id, agreement.StatusFulfilled)
}

// MarkCancelled performs the terminal unfulfilled -> cancelled transition.
func (t *Tx) MarkCancelled(id ethcommon.Hash) error {
	return t.markTerminal(id, agreement.StatusCancelled)
}

func (t *Tx) markTerminal(id ethcommon.Hash, status agreement.RequestStatus) error {
	res, err := t.tx.Exec(`UPDATE membership SET status = ?
		WHERE requestId = ? AND status = ?`,
		string(status), hashHex(id), string(agreement.StatusUnfulfilled))
	if err != nil {
		return err
	}
	if err := oneRow(res, ErrAlreadyTerminal); err != nil {
		return err
	}

	res, err = t.tx.Exec(`UPDATE swap_request
		SET executed = 1, preHooks = NULL, postHooks = NULL, refundAmount = NULL
		WHERE requestId = ? AND executed = 0`, hashHex(id))
	if err != nil {
		return err
	}
	return oneRow(res, ErrAlreadyTerminal)
}

// InsertReceipt writes the one-shot fulfillment receipt on the destination
// ledger and records the id as fulfilled. Duplicate ids fail.
func (t *Tx) InsertReceipt(receipt *agreement.FulfillmentReceipt) error {
	res, err := t.tx.Exec(`INSERT OR IGNORE INTO membership (requestId, status)
		VALUES (?, ?)`, hashHex(receipt.RequestId), string(agreement.StatusFulfilled))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrDuplicateReceipt
	}

	s := encodeReceipt(receipt.RequestId, receipt)
	_, err = t.tx.Exec(`INSERT INTO receipt (requestId, solver, recipient,
		tokenOut, amountOut, sourceChainId, destinationChainId, fulfilledAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RequestId, s.Solver, s.Recipient, s.TokenOut, s.AmountOut,
		s.SourceChainId, s.DestinationChainId, s.FulfilledAt)
	return err
}

// AddFeeBalance accrues delta into the per-token fee accumulator.
func (t *Tx) AddFeeBalance(token ethcommon.Address, delta *big.Int) error {
	current, err := t.feeBalance(token)
	if err != nil {
		return err
	}

	next := new(big.Int).Add(current, delta)
	_, err = t.tx.Exec(`INSERT OR REPLACE INTO fee_balance (token, amount)
		VALUES (?, ?)`, addrHex(token), bigHex(next))
	return err
}

// SubFeeBalance releases delta from the accumulator, failing if the
// balance cannot cover it.
func (t *Tx) SubFeeBalance(token ethcommon.Address, delta *big.Int) error {
	current, err := t.feeBalance(token)
	if err != nil {
		return err
	}
	if current.Cmp(delta) < 0 {
		return ErrFeeBalanceTooLow
	}

	next := new(big.Int).Sub(current, delta)
	_, err = t.tx.Exec(`INSERT OR REPLACE INTO fee_balance (token, amount)
		VALUES (?, ?)`, addrHex(token), bigHex(next))
	return err
}

func (t *Tx) feeBalance(token ethcommon.Address) (*big.Int, error) {
	var amount string
	err := t.tx.QueryRow(`SELECT amount FROM fee_balance WHERE token = ?`,
		addrHex(token)).Scan(&amount)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return common.HexStrToBigInt(amount), nil
}

func (t *Tx) SetChainAllowed(chainId *big.Int, allowed bool) error {
	var err error
	if allowed {
		_, err = t.tx.Exec(`INSERT OR IGNORE INTO chain_allowed (chainId) VALUES (?)`,
			bigHex(chainId))
	} else {
		_, err = t.tx.Exec(`DELETE FROM chain_allowed WHERE chainId = ?`,
			bigHex(chainId))
	}
	return err
}

func (t *Tx) AddTokenRoute(tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO token_route
		(tokenIn, destinationChainId, tokenOut) VALUES (?, ?, ?)`,
		addrHex(tokenIn), bigHex(destinationChainId), addrHex(tokenOut))
	return err
}

func (t *Tx) RemoveTokenRoute(tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address) error {
	_, err := t.tx.Exec(`DELETE FROM token_route
		WHERE tokenIn = ? AND destinationChainId = ? AND tokenOut = ?`,
		addrHex(tokenIn), bigHex(destinationChainId), addrHex(tokenOut))
	return err
}

// AppendEvent journals an event within the call transaction and returns
// its sequence number.
func (t *Tx) AppendEvent(ev *agreement.Event) (uint64, error) {
	res, err := t.tx.Exec(`INSERT INTO journal (kind, requestId, token, amount, at)
		VALUES (?, ?, ?, ?, ?)`,
		string(ev.Kind), hashHex(ev.RequestId), addrHex(ev.Token),
		bigHex(ev.Amount), ev.At)
	if err != nil {
		return 0, err
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

func oneRow(res sql.Result, notOne error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return notOne
	}
	return nil
}
