// Package upgrade is the scheduled upgrade controller: a state machine with
// at most one pending upgrade, gated by the upgrade committee's signatures
// and a mandatory delay before any scheduled code swap may run. The engine
// keeps all state in the registry; its code is a strategy object the
// controller replaces atomically.
package upgrade

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
	"github.com/crossflow-io/settle-go/registry"
)

var (
	ErrUpgradePending   = errors.New("an upgrade is already scheduled")
	ErrNoUpgradePending = errors.New("no upgrade is scheduled")
	ErrDelayTooShort    = errors.New("execution time violates the minimum delay")
	ErrSameVersion      = errors.New("target version equals the running version")
	ErrUnknownVersion   = errors.New("target version has no registered code")
	ErrNotYetExecutable = errors.New("scheduled execution time not reached")
	ErrCancelTooLate    = errors.New("scheduled execution time already reached")
	ErrStaleNonce       = errors.New("upgrade nonce not strictly increasing")
	ErrInvalidSignature = errors.New("upgrade signature verification failed")
	ErrNotRotatable     = errors.New("upgrade verifier does not support rotation")
)

// KeyUpgradeNonce persists the strictly increasing governance nonce.
var KeyUpgradeNonce = crypto.Keccak256Hash([]byte("upgradeNonce"))

// action tags keep a signed schedule from ever authorizing a cancel and
// vice versa
const (
	tagSchedule = "UPGRADE_SCHEDULE"
	tagCancel   = "UPGRADE_CANCEL"
	tagRotate   = "UPGRADE_ROTATE"
)

// ScheduledUpgrade is the single pending upgrade, created by Schedule and
// destroyed by Cancel or Execute.
type ScheduledUpgrade struct {
	TargetVersion string
	Payload       []byte
	ExecuteAt     uint64
	Nonce         uint64
}

// CodeHost is the engine-side surface the controller operates on.
type CodeHost interface {
	CurrentCode() agreement.EngineCode
	SwapCode(code agreement.EngineCode)
}

// Controller runs the Idle -> Scheduled -> Idle state machine. Candidate
// code versions must be registered before they can be scheduled.
type Controller struct {
	host         CodeHost
	verifier     agreement.SignatureVerifier
	clock        agreement.Clock
	db           *registry.RegistryDB
	minimumDelay uint64

	mu      sync.Mutex
	pending *ScheduledUpgrade
	codes   map[string]agreement.EngineCode
}

func NewController(host CodeHost, verifier agreement.SignatureVerifier, clock agreement.Clock, db *registry.RegistryDB, minimumDelay uint64) *Controller {
	return &Controller{
		host:         host,
		verifier:     verifier,
		clock:        clock,
		db:           db,
		minimumDelay: minimumDelay,
		codes:        make(map[string]agreement.EngineCode),
	}
}

// RegisterCode makes a code version schedulable.
func (c *Controller) RegisterCode(code agreement.EngineCode) {
	c.mu.Lock()
	c.codes[code.Version()] = code
	c.mu.Unlock()
}

// Pending returns a copy of the scheduled upgrade, or nil when idle.
func (c *Controller) Pending() *ScheduledUpgrade {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	clone := *c.pending
	clone.Payload = append([]byte(nil), c.pending.Payload...)
	return &clone
}

// signingMessage is the exact byte message the committee signs: the action
// tag, the target version, the payload digest, the execution time and the
// nonce. Changing any field, or reusing the message for the other action,
// invalidates the signature.
func signingMessage(tag, targetVersion string, payload []byte, executeAt, nonce uint64) []byte {
	var at, n [8]byte
	binary.BigEndian.PutUint64(at[:], executeAt)
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256(common.EncodePacked(
		tag,
		targetVersion,
		crypto.Keccak256Hash(payload),
		at[:],
		n[:],
	))
}

// Schedule moves Idle -> Scheduled. The execution time must lie at least
// minimumDelay in the future regardless of the signature, and the target
// must be a registered version different from the running one.
func (c *Controller) Schedule(targetVersion string, payload []byte, executeAt, nonce uint64, sig *agreement.Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return ErrUpgradePending
	}
	if targetVersion == c.host.CurrentCode().Version() {
		return ErrSameVersion
	}
	if _, ok := c.codes[targetVersion]; !ok {
		return ErrUnknownVersion
	}

	now := c.clock.Now()
	if executeAt < now+c.minimumDelay {
		return ErrDelayTooShort
	}

	if err := c.checkNonce(nonce); err != nil {
		return err
	}
	msg := signingMessage(tagSchedule, targetVersion, payload, executeAt, nonce)
	if !c.verifier.Verify(msg, sig) {
		return ErrInvalidSignature
	}
	if err := c.consumeNonce(nonce); err != nil {
		return err
	}

	c.pending = &ScheduledUpgrade{
		TargetVersion: targetVersion,
		Payload:       append([]byte(nil), payload...),
		ExecuteAt:     executeAt,
		Nonce:         nonce,
	}
	c.journal(agreement.EvUpgradeScheduled, now)

	logger.WithFields(logger.Fields{
		"target":    targetVersion,
		"executeAt": executeAt,
	}).Info("upgrade scheduled")

	return nil
}

// Cancel moves Scheduled -> Idle before the execution time. The signature
// covers the pending upgrade's own parameters under the cancel tag, so an
// authorization to schedule can never cancel and a cancel for one upgrade
// can never cancel another.
func (c *Controller) Cancel(nonce uint64, sig *agreement.Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ErrNoUpgradePending
	}

	now := c.clock.Now()
	if now >= c.pending.ExecuteAt {
		return ErrCancelTooLate
	}

	if err := c.checkNonce(nonce); err != nil {
		return err
	}
	msg := signingMessage(tagCancel, c.pending.TargetVersion, c.pending.Payload, c.pending.ExecuteAt, nonce)
	if !c.verifier.Verify(msg, sig) {
		return ErrInvalidSignature
	}
	if err := c.consumeNonce(nonce); err != nil {
		return err
	}

	target := c.pending.TargetVersion
	c.pending = nil
	c.journal(agreement.EvUpgradeCancelled, now)

	logger.WithField("target", target).Info("upgrade cancelled")
	return nil
}

// Execute moves Scheduled -> Idle at or after the execution time: the code
// swap and its initialization payload run as one step. The pending state is
// cleared before any new code runs, so re-entry finds the controller idle;
// a failed initialization restores both the previous code and the pending
// upgrade.
func (c *Controller) Execute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ErrNoUpgradePending
	}

	now := c.clock.Now()
	if now < c.pending.ExecuteAt {
		return ErrNotYetExecutable
	}

	staged := c.pending
	next := c.codes[staged.TargetVersion]
	prev := c.host.CurrentCode()

	c.pending = nil
	c.host.SwapCode(next)
	if err := next.Init(staged.Payload); err != nil {
		c.host.SwapCode(prev)
		c.pending = staged
		return err
	}

	c.journal(agreement.EvUpgradeExecuted, now)

	logger.WithFields(logger.Fields{
		"from": prev.Version(),
		"to":   staged.TargetVersion,
	}).Info("upgrade executed")

	return nil
}

// rotationMessage binds a committee handover to the incumbent key, the
// successor key and the governance nonce.
func rotationMessage(oldPubKeyX, newPubKeyX [32]byte, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256(common.EncodePacked(
		tagRotate,
		oldPubKeyX,
		newPubKeyX,
		n[:],
	))
}

// Rotate replaces the upgrade committee key. The incumbent committee must
// sign the handover and the nonce draws from the same strictly increasing
// sequence as Schedule and Cancel, so no recorded governance authorization
// of any kind can be replayed.
func (c *Controller) Rotate(newPubKeyX [32]byte, nonce uint64, sig *agreement.Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	verifier, ok := c.verifier.(rotatable)
	if !ok {
		return ErrNotRotatable
	}
	oldPubKeyX := verifier.PubKeyX()

	if err := c.checkNonce(nonce); err != nil {
		return err
	}
	if !c.verifier.Verify(rotationMessage(oldPubKeyX, newPubKeyX, nonce), sig) {
		return ErrInvalidSignature
	}
	if err := c.consumeNonce(nonce); err != nil {
		return err
	}

	verifier.Rotate(newPubKeyX)
	c.journal(agreement.EvUpgradeKeyRotated, c.clock.Now())

	logger.WithField("nonce", nonce).Info("upgrade verifier rotated")
	return nil
}

// rotatable is what the verifier must expose for key rotation.
type rotatable interface {
	PubKeyX() [32]byte
	Rotate(pubKeyX [32]byte)
}

func (c *Controller) checkNonce(nonce uint64) error {
	stored, err := c.db.KVGet([32]byte(KeyUpgradeNonce))
	if err == sql.ErrNoRows {
		if nonce == 0 {
			return ErrStaleNonce
		}
		return nil
	}
	if err != nil {
		return err
	}
	if nonce <= binary.BigEndian.Uint64(stored[24:]) {
		return ErrStaleNonce
	}
	return nil
}

func (c *Controller) consumeNonce(nonce uint64) error {
	var value [32]byte
	binary.BigEndian.PutUint64(value[24:], nonce)
	return c.db.KVSet([32]byte(KeyUpgradeNonce), value)
}

func (c *Controller) journal(kind agreement.EventKind, at uint64) {
	if _, err := c.db.AppendEvent(&agreement.Event{Kind: kind, At: at}); err != nil {
		logger.WithError(err).Warn("upgrade journal append failed")
	}
}
