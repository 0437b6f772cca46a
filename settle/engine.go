// Package settle implements the swap settlement engine: request creation
// and fee accounting, solver fulfillment on the destination ledger,
// threshold-signature-gated solver repayment on the source ledger, and the
// two-phase cancellation escape hatch.
//
// One Engine instance exists per ledger. The ledger's execution model is a
// single, strictly ordered sequence of all-or-nothing calls; the engine
// models it with a re-entrancy sentinel and one registry transaction per
// mutating call, committed only after every external interaction of the
// call has succeeded. Bookkeeping writes land in the transaction before any
// external code path (hook gateway, token vault) runs; a second arrival for
// the same request id is a hard failure at any re-entry depth.
package settle

import (
	"database/sql"
	"encoding/binary"
	"math/big"
	"sync/atomic"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/registry"
)

var (
	// KeyFeeBps persists the live verification-fee rate across restarts.
	KeyFeeBps = crypto.Keccak256Hash([]byte("verificationFeeBps"))
	// KeyRotateNonce persists the strictly increasing validator-rotation
	// nonce.
	KeyRotateNonce = crypto.Keccak256Hash([]byte("validatorRotateNonce"))
)

type Engine struct {
	cfg *Config
	db  *registry.RegistryDB

	vault   agreement.TokenVault
	permit  agreement.PermitRelay // nil until configured
	gateway agreement.HookGateway // nil until configured
	clock   agreement.Clock

	swapVerifier agreement.SignatureVerifier

	feeBps  uint64
	code    atomic.Value // codeBox
	entered atomic.Bool

	events chan *agreement.Event
}

// codeBox keeps atomic.Value happy: the stored concrete type must not
// change across swaps, the interface inside may.
type codeBox struct {
	code agreement.EngineCode
}

// baseCode is the engine's initial code reference; upgrades swap it for a
// successor through the upgrade controller.
type baseCode struct {
	version string
}

func (c baseCode) Version() string { return c.version }

func (c baseCode) Init(payload []byte) error { return nil }

func New(cfg *Config, db *registry.RegistryDB, tokenVault agreement.TokenVault, swapVerifier agreement.SignatureVerifier, clock agreement.Clock) (*Engine, error) {
	e := &Engine{
		cfg:          cfg,
		db:           db,
		vault:        tokenVault,
		clock:        clock,
		swapVerifier: swapVerifier,
		feeBps:       cfg.FeeBps,
		events:       make(chan *agreement.Event, cfg.journalBuffer()),
	}
	e.code.Store(codeBox{code: baseCode{version: cfg.version()}})

	// the live fee rate survives restarts
	stored, err := db.KVGet([32]byte(KeyFeeBps))
	switch {
	case err == nil:
		e.feeBps = binary.BigEndian.Uint64(stored[24:])
	case err != sql.ErrNoRows:
		return nil, err
	}

	return e, nil
}

// SetPermitRelay configures the permit-signed transfer path. Without it
// the Permit2-style operations fail with ErrNoPermitRelay.
func (e *Engine) SetPermitRelay(relay agreement.PermitRelay) {
	e.permit = relay
}

// enter turns any overlapping or re-entrant call into a hard failure. The
// ledger serializes external calls, so a second entry can only be a
// callback from a hook or transfer path.
func (e *Engine) enter() (func(), error) {
	if !e.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { e.entered.Store(false) }, nil
}

// publish hands a committed journal entry to the subscription channel.
// Slow subscribers lose events; the journal query is the reliable path.
func (e *Engine) publish(ev *agreement.Event) {
	select {
	case e.events <- ev:
	default:
		logger.Warnf("event subscriber lagging, dropped: %v", ev)
	}
}

// Events is the live feed of journal entries for off-ledger observers.
func (e *Engine) Events() <-chan *agreement.Event {
	return e.events
}

// journal appends the event inside the call transaction and returns a
// closure that publishes it once the call has committed.
func (e *Engine) journal(tx *registry.Tx, ev *agreement.Event) (func(), error) {
	seq, err := tx.AppendEvent(ev)
	if err != nil {
		return nil, err
	}
	ev.Seq = seq
	return func() { e.publish(ev) }, nil
}

// --- read-only queries ---

func (e *Engine) ChainId() *big.Int {
	return new(big.Int).Set(e.cfg.ChainId)
}

func (e *Engine) FeeBps() uint64 {
	return e.feeBps
}

// Version reports the current code reference's version string.
func (e *Engine) Version() string {
	return e.CurrentCode().Version()
}

func (e *Engine) GetRequest(id ethcommon.Hash) (*registry.RequestRecord, error) {
	return e.db.GetRequest(id)
}

func (e *Engine) GetReceipt(id ethcommon.Hash) (*agreement.FulfillmentReceipt, error) {
	return e.db.GetReceipt(id)
}

func (e *Engine) Status(id ethcommon.Hash) (agreement.RequestStatus, bool, error) {
	return e.db.Status(id)
}

func (e *Engine) IdsByStatus(status agreement.RequestStatus) ([]ethcommon.Hash, error) {
	return e.db.IdsByStatus(status)
}

func (e *Engine) FeeBalance(token ethcommon.Address) (*big.Int, error) {
	return e.db.FeeBalance(token)
}

func (e *Engine) Journal(sinceSeq uint64, limit int) ([]*agreement.Event, error) {
	return e.db.Journal(sinceSeq, limit)
}

// --- code host (consumed by the upgrade controller) ---

func (e *Engine) CurrentCode() agreement.EngineCode {
	return e.code.Load().(codeBox).code
}

func (e *Engine) SwapCode(code agreement.EngineCode) {
	e.code.Store(codeBox{code: code})
}

// SwapVerifier exposes the active swap-authorization verifier, mainly for
// wiring and tests.
func (e *Engine) SwapVerifier() agreement.SignatureVerifier {
	return e.swapVerifier
}

// rotateMessage is the exact byte message the committee signs to authorize
// replacing the swap verifier key. The strictly increasing nonce prevents
// replaying an old rotation.
func rotateMessage(oldPubKeyX, newPubKeyX [32]byte, nonce uint64) []byte {
	return crypto.Keccak256(packRotate(oldPubKeyX, newPubKeyX, nonce))
}

func packRotate(oldPubKeyX, newPubKeyX [32]byte, nonce uint64) []byte {
	msg := make([]byte, 0, len(rotateActionTag)+32+32+8)
	msg = append(msg, rotateActionTag...)
	msg = append(msg, oldPubKeyX[:]...)
	msg = append(msg, newPubKeyX[:]...)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return append(msg, n[:]...)
}

const rotateActionTag = "VALIDATOR_ROTATE"
