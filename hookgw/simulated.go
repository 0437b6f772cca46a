package hookgw

import (
	"errors"

	"github.com/crossflow-io/settle-go/agreement"
)

// SimGateway records executed hooks and can be told to fail at a given
// position, for testing abort behavior.
type SimGateway struct {
	Executed []agreement.Hook
	FailAt   int // 0-based index that fails; -1 never fails
}

func NewSimGateway() *SimGateway {
	return &SimGateway{FailAt: -1}
}

func (g *SimGateway) Execute(hooks []agreement.Hook) error {
	for i, h := range hooks {
		if g.FailAt >= 0 && i == g.FailAt {
			return errors.New("simulated hook failure")
		}
		g.Executed = append(g.Executed, h)
	}
	return nil
}
