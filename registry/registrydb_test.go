package registry

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/common"
)

func newTestDB(t *testing.T) *RegistryDB {
	db, err := NewRegistryDB("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func randRequest(nonce uint64) *RequestRecord {
	req := &agreement.SwapRequest{
		Sender:             common.RandAddress(),
		Recipient:          common.RandAddress(),
		TokenIn:            common.RandAddress(),
		TokenOut:           common.RandAddress(),
		AmountOut:          common.RandBigInt(8),
		SourceChainId:      big.NewInt(1),
		DestinationChainId: big.NewInt(10),
		VerificationFee:    common.RandBigInt(4),
		SolverFee:          common.RandBigInt(4),
		Nonce:              nonce,
		RequestedAt:        1000,
		PreHooks: []agreement.Hook{
			{Target: common.RandAddress(), Payload: common.RandBytes(8), GasLimit: 50000},
		},
	}
	return &RequestRecord{
		Request:      req,
		Status:       agreement.StatusUnfulfilled,
		RefundAmount: common.RandBigInt(8),
	}
}

func insert(t *testing.T, db *RegistryDB, rec *RequestRecord) {
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertRequest(rec))
	require.NoError(t, tx.Commit())
}

func TestInsertAndGetRequest(t *testing.T) {
	db := newTestDB(t)
	rec := randRequest(0)
	id := rec.Request.RequestId()

	insert(t, db, rec)

	stored, err := db.GetRequest(id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, rec.Request.Equal(stored.Request))
	assert.Equal(t, agreement.StatusUnfulfilled, stored.Status)
	assert.Equal(t, rec.RefundAmount, stored.RefundAmount)
	assert.Zero(t, stored.CancelStagedAt)

	// unseen id
	missing, err := db.GetRequest(ethcommon.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	// duplicate insert fails and leaves one membership entry
	tx, err := db.Begin()
	require.NoError(t, err)
	assert.ErrorIs(t, tx.InsertRequest(rec), ErrDuplicateRequest)
	require.NoError(t, tx.Rollback())

	ids, err := db.IdsByStatus(agreement.StatusUnfulfilled)
	require.NoError(t, err)
	assert.Equal(t, []ethcommon.Hash{id}, ids)
}

func TestTerminalTransitions(t *testing.T) {
	db := newTestDB(t)
	rec := randRequest(0)
	id := rec.Request.RequestId()
	insert(t, db, rec)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.MarkFulfilled(id))
	require.NoError(t, tx.Commit())

	stored, err := db.GetRequest(id)
	require.NoError(t, err)
	assert.True(t, stored.Request.Executed)
	assert.Nil(t, stored.Request.PreHooks) // hook lists deleted
	assert.Nil(t, stored.RefundAmount)     // refund entry consumed
	assert.Equal(t, agreement.StatusFulfilled, stored.Status)

	// terminal statuses never re-enter unfulfilled
	tx, err = db.Begin()
	require.NoError(t, err)
	assert.ErrorIs(t, tx.MarkFulfilled(id), ErrAlreadyTerminal)
	assert.ErrorIs(t, tx.MarkCancelled(id), ErrAlreadyTerminal)
	require.NoError(t, tx.Rollback())

	ids, err := db.IdsByStatus(agreement.StatusUnfulfilled)
	require.NoError(t, err)
	assert.Empty(t, ids)
	ids, err = db.IdsByStatus(agreement.StatusFulfilled)
	require.NoError(t, err)
	assert.Equal(t, []ethcommon.Hash{id}, ids)
}

func TestUpdateSolverFee(t *testing.T) {
	db := newTestDB(t)
	rec := randRequest(0)
	id := rec.Request.RequestId()
	insert(t, db, rec)

	newFee := new(big.Int).Add(rec.Request.SolverFee, big.NewInt(5))
	newRefund := new(big.Int).Add(rec.RefundAmount, big.NewInt(5))

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.UpdateSolverFee(id, newFee, newRefund))
	require.NoError(t, tx.Commit())

	stored, err := db.GetRequest(id)
	require.NoError(t, err)
	assert.Equal(t, newFee, stored.Request.SolverFee)
	assert.Equal(t, newRefund, stored.RefundAmount)

	// the id is unchanged by fee updates
	assert.Equal(t, id, stored.Request.RequestId())
}

func TestReceipts(t *testing.T) {
	db := newTestDB(t)
	receipt := &agreement.FulfillmentReceipt{
		RequestId:          ethcommon.BytesToHash(common.RandBytes(32)),
		Solver:             common.RandAddress(),
		Recipient:          common.RandAddress(),
		TokenOut:           common.RandAddress(),
		AmountOut:          common.RandBigInt(8),
		SourceChainId:      big.NewInt(1),
		DestinationChainId: big.NewInt(10),
		FulfilledAt:        2000,
	}

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertReceipt(receipt))
	require.NoError(t, tx.Commit())

	stored, err := db.GetReceipt(receipt.RequestId)
	require.NoError(t, err)
	assert.Equal(t, receipt, stored)

	status, ok, err := db.Status(receipt.RequestId)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, agreement.StatusFulfilled, status)

	// single-shot per id
	tx, err = db.Begin()
	require.NoError(t, err)
	assert.ErrorIs(t, tx.InsertReceipt(receipt), ErrDuplicateReceipt)
	require.NoError(t, tx.Rollback())
}

func TestFeeBalances(t *testing.T) {
	db := newTestDB(t)
	token := common.RandAddress()

	balance, err := db.FeeBalance(token)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.AddFeeBalance(token, big.NewInt(100)))
	require.NoError(t, tx.AddFeeBalance(token, big.NewInt(50)))
	require.NoError(t, tx.SubFeeBalance(token, big.NewInt(30)))
	assert.ErrorIs(t, tx.SubFeeBalance(token, big.NewInt(1000)), ErrFeeBalanceTooLow)
	require.NoError(t, tx.Commit())

	balance, err = db.FeeBalance(token)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(120), balance)
}

func TestNextNonce(t *testing.T) {
	db := newTestDB(t)

	for want := uint64(0); want < 3; want++ {
		tx, err := db.Begin()
		require.NoError(t, err)
		nonce, err := tx.NextNonce()
		require.NoError(t, err)
		assert.Equal(t, want, nonce)
		require.NoError(t, tx.Commit())
	}

	// a rolled back allocation is not consumed
	tx, err := db.Begin()
	require.NoError(t, err)
	nonce, err := tx.NextNonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)
	require.NoError(t, tx.Rollback())

	tx, err = db.Begin()
	require.NoError(t, err)
	nonce, err = tx.NextNonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)
	require.NoError(t, tx.Commit())
}

func TestRoutesAndChains(t *testing.T) {
	db := newTestDB(t)
	tokenIn := common.RandAddress()
	tokenOut := common.RandAddress()
	dest := big.NewInt(10)

	allowed, err := db.ChainAllowed(dest)
	require.NoError(t, err)
	assert.False(t, allowed)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetChainAllowed(dest, true))
	require.NoError(t, tx.AddTokenRoute(tokenIn, dest, tokenOut))
	require.NoError(t, tx.Commit())

	allowed, err = db.ChainAllowed(dest)
	require.NoError(t, err)
	assert.True(t, allowed)

	ok, err := db.TokenRouteExists(tokenIn, dest, tokenOut)
	require.NoError(t, err)
	assert.True(t, ok)

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.RemoveTokenRoute(tokenIn, dest, tokenOut))
	require.NoError(t, tx.SetChainAllowed(dest, false))
	require.NoError(t, tx.Commit())

	ok, err = db.TokenRouteExists(tokenIn, dest, tokenOut)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournal(t *testing.T) {
	db := newTestDB(t)

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := tx.AppendEvent(&agreement.Event{
			Kind:      agreement.EvSwapRequested,
			RequestId: ethcommon.BytesToHash(common.RandBytes(32)),
			Token:     common.RandAddress(),
			Amount:    big.NewInt(int64(i)),
			At:        uint64(1000 + i),
		})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	events, err := db.Journal(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, uint64(3), events[2].Seq)

	events, err = db.Journal(1, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Seq)
}
