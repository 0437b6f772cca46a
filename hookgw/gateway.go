// Package hookgw executes the ordered hook lists attached to swap
// requests. The engine consumes the gateway through agreement.HookGateway;
// CallGateway is the in-process implementation, dispatching to registered
// targets with a per-hook gas budget.
package hookgw

import (
	"errors"
	"fmt"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
)

var (
	ErrUnknownTarget   = errors.New("hook target not registered with gateway")
	ErrZeroGasLimit    = errors.New("hook gas limit is zero")
	ErrGasLimitTooHigh = errors.New("hook gas limit exceeds gateway maximum")
)

// HookFunc is one registered target. gasLimit is the budget the enclosing
// call granted; the target must treat it as a hard bound.
type HookFunc func(payload []byte, gasLimit uint64) error

// CallGateway dispatches hooks to registered in-process targets in order.
// The first failure aborts the whole batch, and therefore the enclosing
// request creation or fulfillment.
type CallGateway struct {
	mu      sync.RWMutex
	targets map[ethcommon.Address]HookFunc
	maxGas  uint64
}

// NewCallGateway creates a gateway with a per-hook gas ceiling. maxGas of
// zero disables the ceiling.
func NewCallGateway(maxGas uint64) *CallGateway {
	return &CallGateway{
		targets: make(map[ethcommon.Address]HookFunc),
		maxGas:  maxGas,
	}
}

// Register binds a target address to a hook function, replacing any
// previous binding.
func (g *CallGateway) Register(target ethcommon.Address, fn HookFunc) {
	g.mu.Lock()
	g.targets[target] = fn
	g.mu.Unlock()
}

// Execute implements agreement.HookGateway.
func (g *CallGateway) Execute(hooks []agreement.Hook) error {
	for i, h := range hooks {
		if h.GasLimit == 0 {
			return ErrZeroGasLimit
		}
		if g.maxGas != 0 && h.GasLimit > g.maxGas {
			return ErrGasLimitTooHigh
		}

		g.mu.RLock()
		fn, ok := g.targets[h.Target]
		g.mu.RUnlock()
		if !ok {
			return ErrUnknownTarget
		}

		if err := fn(h.Payload, h.GasLimit); err != nil {
			logger.WithFields(logger.Fields{
				"idx":    i,
				"target": h.Target.Hex(),
			}).Debugf("hook execution aborted batch: err=%v", err)
			return fmt.Errorf("hook %d (%s): %w", i, h.Target.Hex(), err)
		}
	}

	return nil
}
