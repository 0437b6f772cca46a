// Package registry owns the canonical mapping from request id to request
// parameters, receipts, hook lists, refund ledger entries, fee balances and
// the membership sets, persisted in sqlite. It enforces the lifecycle
// invariant at the storage layer: every seen id is in exactly one of
// {unfulfilled, fulfilled, cancelled}, and the terminal transitions are
// status-guarded updates that fail on a second arrival.
package registry

import (
	"database/sql"
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
	"github.com/crossflow-io/settle-go/database"
)

var (
	ErrRequestNotFound  = errors.New("request not found in registry")
	ErrAlreadyTerminal  = errors.New("request already in a terminal status")
	ErrFeeBalanceTooLow = errors.New("fee balance lower than requested amount")
	ErrDuplicateRequest = errors.New("request id already present")
	ErrDuplicateReceipt = errors.New("fulfillment receipt already present")
)

type RegistryDB struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewRegistryDB(driverName, dataSourceName string) (*RegistryDB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	if _, err = db.Exec(allTables); err != nil {
		return nil, err
	}

	return &RegistryDB{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (r *RegistryDB) Close() error {
	r.stmtCache.Clear()
	return r.db.Close()
}

const requestColumns = `requestId, sender, recipient, tokenIn, tokenOut,
	amountOut, sourceChainId, destinationChainId, verificationFee, solverFee,
	nonce, executed, requestedAt, preHooks, postHooks, refundAmount,
	cancelStagedAt`

// GetRequest returns the stored record for id, or (nil, nil) if unseen.
func (r *RegistryDB) GetRequest(id ethcommon.Hash) (*RequestRecord, error) {
	query := `SELECT ` + requestColumns + `, m.status
		FROM swap_request JOIN membership m USING (requestId)
		WHERE requestId = ?`
	stmt := r.stmtCache.MustPrepare(query)

	var s sqlRequest
	err := stmt.QueryRow(hashHex(id)).Scan(
		&s.RequestId, &s.Sender, &s.Recipient, &s.TokenIn, &s.TokenOut,
		&s.AmountOut, &s.SourceChainId, &s.DestinationChainId,
		&s.VerificationFee, &s.SolverFee, &s.Nonce, &s.Executed,
		&s.RequestedAt, &s.PreHooks, &s.PostHooks, &s.RefundAmount,
		&s.CancelStagedAt, &s.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.decode()
}

// Status reports the membership set of id. ok is false for unseen ids.
func (r *RegistryDB) Status(id ethcommon.Hash) (agreement.RequestStatus, bool, error) {
	query := `SELECT status FROM membership WHERE requestId = ?`
	stmt := r.stmtCache.MustPrepare(query)

	var status string
	err := stmt.QueryRow(hashHex(id)).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return agreement.RequestStatus(status), true, nil
}

// IdsByStatus enumerates one membership set in insertion order. Order is
// for enumeration only; correctness never depends on it.
func (r *RegistryDB) IdsByStatus(status agreement.RequestStatus) ([]ethcommon.Hash, error) {
	query := `SELECT requestId FROM membership WHERE status = ? ORDER BY rowid`
	stmt := r.stmtCache.MustPrepare(query)

	rows, err := stmt.Query(string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ethcommon.Hash
	for rows.Next() {
		var idHex string
		if err := rows.Scan(&idHex); err != nil {
			return nil, err
		}
		ids = append(ids, ethcommon.HexToHash(idHex))
	}

	return ids, rows.Err()
}

// GetReceipt returns the fulfillment receipt for id, or (nil, nil) if
// this instance never fulfilled it.
func (r *RegistryDB) GetReceipt(id ethcommon.Hash) (*agreement.FulfillmentReceipt, error) {
	query := `SELECT requestId, solver, recipient, tokenOut, amountOut,
		sourceChainId, destinationChainId, fulfilledAt
		FROM receipt WHERE requestId = ?`
	stmt := r.stmtCache.MustPrepare(query)

	var s sqlReceipt
	err := stmt.QueryRow(hashHex(id)).Scan(
		&s.RequestId, &s.Solver, &s.Recipient, &s.TokenOut, &s.AmountOut,
		&s.SourceChainId, &s.DestinationChainId, &s.FulfilledAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.decode(), nil
}

// FeeBalance returns the accumulated protocol fee for token; zero if the
// token never accrued anything.
func (r *RegistryDB) FeeBalance(token ethcommon.Address) (*big.Int, error) {
	query := `SELECT amount FROM fee_balance WHERE token = ?`
	stmt := r.stmtCache.MustPrepare(query)

	var amount string
	err := stmt.QueryRow(addrHex(token)).Scan(&amount)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}

	return common.HexStrToBigInt(amount), nil
}

func (r *RegistryDB) ChainAllowed(chainId *big.Int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chain_allowed WHERE chainId = ?)`
	stmt := r.stmtCache.MustPrepare(query)

	var exists bool
	if err := stmt.QueryRow(bigHex(chainId)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RegistryDB) TokenRouteExists(tokenIn ethcommon.Address, destinationChainId *big.Int, tokenOut ethcommon.Address) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM token_route
		WHERE tokenIn = ? AND destinationChainId = ? AND tokenOut = ?)`
	stmt := r.stmtCache.MustPrepare(query)

	var exists bool
	err := stmt.QueryRow(addrHex(tokenIn), bigHex(destinationChainId), addrHex(tokenOut)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Journal returns up to limit events with seq > sinceSeq, oldest first.
// limit <= 0 means no limit.
func (r *RegistryDB) Journal(sinceSeq uint64, limit int) ([]*agreement.Event, error) {
	query := `SELECT seq, kind, requestId, token, amount, at FROM journal
		WHERE seq > ? ORDER BY seq`
	args := []interface{}{sinceSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	stmt := r.stmtCache.MustPrepare(query)

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*agreement.Event
	for rows.Next() {
		var (
			ev     agreement.Event
			idHex  string
			token  string
			amount string
		)
		if err := rows.Scan(&ev.Seq, &ev.Kind, &idHex, &token, &amount, &ev.At); err != nil {
			return nil, err
		}
		ev.RequestId = ethcommon.HexToHash(idHex)
		ev.Token = ethcommon.HexToAddress(token)
		ev.Amount = common.HexStrToBigInt(amount)
		events = append(events, &ev)
	}

	return events, rows.Err()
}

// KVGet reads a 32-byte keyed value; sql.ErrNoRows if absent.
func (r *RegistryDB) KVGet(key [32]byte) ([32]byte, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt := r.stmtCache.MustPrepare(query)

	var value string
	if err := stmt.QueryRow(ethcommon.Bytes2Hex(key[:])).Scan(&value); err != nil {
		return [32]byte{}, err
	}
	return common.HexStrToBytes32(value), nil
}

func (r *RegistryDB) KVSet(key, value [32]byte) error {
	query := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmt := r.stmtCache.MustPrepare(query)

	_, err := stmt.Exec(ethcommon.Bytes2Hex(key[:]), ethcommon.Bytes2Hex(value[:]))
	return err
}

// AppendEvent journals an event outside any call transaction. The engine's
// mutating operations journal through Tx instead; this path serves the
// upgrade controller, which owns no registry transaction.
func (r *RegistryDB) AppendEvent(ev *agreement.Event) (uint64, error) {
	query := `INSERT INTO journal (kind, requestId, token, amount, at)
		VALUES (?, ?, ?, ?, ?)`
	stmt := r.stmtCache.MustPrepare(query)

	res, err := stmt.Exec(string(ev.Kind), hashHex(ev.RequestId),
		addrHex(ev.Token), bigHex(ev.Amount), ev.At)
	if err != nil {
		return 0, err
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil
}
