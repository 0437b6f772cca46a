package agreement

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crossflow-io/settle-go/common"
)

func testRequest() *SwapRequest {
	return &SwapRequest{
		Sender:             common.RandAddress(),
		Recipient:          common.RandAddress(),
		TokenIn:            common.RandAddress(),
		TokenOut:           common.RandAddress(),
		AmountOut:          big.NewInt(9_500),
		SourceChainId:      big.NewInt(1),
		DestinationChainId: big.NewInt(2),
		VerificationFee:    big.NewInt(500),
		SolverFee:          big.NewInt(1_000),
		Nonce:              7,
		RequestedAt:        1_000_000,
		PreHooks:           []Hook{{Target: common.RandAddress(), Payload: []byte{1, 2}, GasLimit: 50_000}},
		PostHooks:          nil,
	}
}

func TestRequestIdDeterministic(t *testing.T) {
	r := testRequest()
	clone := r.Clone()

	// two engines derive the same id from the same fields without
	// communicating
	assert.Equal(t, r.RequestId(), clone.RequestId())
	assert.True(t, r.Equal(clone))
}

func TestRequestIdExcludesSolverFee(t *testing.T) {
	r := testRequest()
	id := r.RequestId()

	r.SolverFee = big.NewInt(99_999)
	assert.Equal(t, id, r.RequestId())

	// every other field participates
	r.Nonce++
	assert.NotEqual(t, id, r.RequestId())
}

func TestRequestIdCoversHookDigests(t *testing.T) {
	r := testRequest()
	id := r.RequestId()

	r.PreHooks[0].Payload = []byte{9}
	assert.NotEqual(t, id, r.RequestId())
}

func TestRebalanceSigningHashBindsSolver(t *testing.T) {
	r := testRequest()
	a := common.RandAddress()
	b := common.RandAddress()

	assert.NotEqual(t, r.RebalanceSigningHash(a), r.RebalanceSigningHash(b))
	assert.NotEqual(t, r.RequestId(), r.RebalanceSigningHash(a))
}

func TestHashHooksOrderMatters(t *testing.T) {
	h1 := Hook{Target: common.RandAddress(), Payload: []byte{1}, GasLimit: 1_000}
	h2 := Hook{Target: common.RandAddress(), Payload: []byte{2}, GasLimit: 2_000}

	assert.NotEqual(t, HashHooks([]Hook{h1, h2}), HashHooks([]Hook{h2, h1}))
	assert.Equal(t, HashHooks(nil), HashHooks([]Hook{}))
}
