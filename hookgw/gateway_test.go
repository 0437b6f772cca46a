package hookgw

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

func TestExecuteInOrder(t *testing.T) {
	gw := NewCallGateway(100000)

	a, b := common.RandAddress(), common.RandAddress()
	var order []string
	gw.Register(a, func(payload []byte, gasLimit uint64) error {
		order = append(order, "a:"+string(payload))
		return nil
	})
	gw.Register(b, func(payload []byte, gasLimit uint64) error {
		order = append(order, "b:"+string(payload))
		return nil
	})

	err := gw.Execute([]agreement.Hook{
		{Target: b, Payload: []byte("1"), GasLimit: 1000},
		{Target: a, Payload: []byte("2"), GasLimit: 1000},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b:1", "a:2"}, order)
}

func TestFirstFailureAborts(t *testing.T) {
	gw := NewCallGateway(0)

	a, b := common.RandAddress(), common.RandAddress()
	calls := 0
	gw.Register(a, func(payload []byte, gasLimit uint64) error {
		return errors.New("boom")
	})
	gw.Register(b, func(payload []byte, gasLimit uint64) error {
		calls++
		return nil
	})

	err := gw.Execute([]agreement.Hook{
		{Target: a, Payload: nil, GasLimit: 1000},
		{Target: b, Payload: nil, GasLimit: 1000},
	})
	assert.Error(t, err)
	assert.Zero(t, calls) // later hooks never ran
}

func TestGasBounds(t *testing.T) {
	gw := NewCallGateway(500)
	a := common.RandAddress()
	gw.Register(a, func(payload []byte, gasLimit uint64) error { return nil })

	err := gw.Execute([]agreement.Hook{{Target: a, GasLimit: 0}})
	assert.ErrorIs(t, err, ErrZeroGasLimit)

	err = gw.Execute([]agreement.Hook{{Target: a, GasLimit: 501}})
	assert.ErrorIs(t, err, ErrGasLimitTooHigh)

	err = gw.Execute([]agreement.Hook{{Target: a, GasLimit: 500}})
	assert.NoError(t, err)
}

func TestUnknownTarget(t *testing.T) {
	gw := NewCallGateway(0)
	err := gw.Execute([]agreement.Hook{{Target: common.RandAddress(), GasLimit: 1}})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}
