package reporter

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/registry"
	"github.com/crossflow-io/settle-go/settle"
	"github.com/crossflow-io/settle-go/sigverify"
	"github.com/crossflow-io/settle-go/vault"
)

var (
	admin     = ethcommon.HexToAddress("0xad014ad014ad014ad014ad014ad014ad014ad014")
	custody   = ethcommon.HexToAddress("0xc0570d9c0570d9c0570d9c0570d9c0570d9c0570")
	requester = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenIn   = ethcommon.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenOut  = ethcommon.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// newTestRouter stands up an engine with one live request behind the
// reporter's router.
func newTestRouter(t *testing.T) (*gin.Engine, ethcommon.Hash) {
	gin.SetMode(gin.TestMode)

	db, err := registry.NewRegistryDB("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	signer, err := sigverify.NewRandomLocalSigner(sigverify.DomainSwap)
	require.NoError(t, err)

	v := vault.NewSimVault()
	v.Mint(tokenIn, requester, big.NewInt(1_000_000))

	engine, err := settle.New(&settle.Config{
		ChainId:            big.NewInt(1),
		FeeBps:             500,
		CancellationWindow: 3600,
		Admin:              admin,
		Custody:            custody,
	}, db, v, signer.Verifier(), &agreement.SimClock{T: 1_000_000})
	require.NoError(t, err)

	require.NoError(t, engine.SetChainAllowed(admin, big.NewInt(2), true))
	require.NoError(t, engine.AddTokenRoute(admin, tokenIn, big.NewInt(2), tokenOut))

	id, err := engine.RequestCrossChainSwap(requester, &settle.SwapParams{
		TokenIn:            tokenIn,
		TokenOut:           tokenOut,
		AmountIn:           big.NewInt(10_000),
		AmountOut:          big.NewInt(9_500),
		SolverFee:          big.NewInt(1_000),
		DestinationChainId: big.NewInt(2),
		Recipient:          requester,
	})
	require.NoError(t, err)

	h := NewHttpReporter("127.0.0.1", "0", engine)
	return h.SetupRouter(), id
}

func get(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHello(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(router, ROUTE_HELLO)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "world")
}

func TestVersionRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(router, ROUTE_VERSION)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), settle.DefaultVersion)
	assert.Contains(t, w.Body.String(), `"chain_id":"1"`)
}

func TestRequestRoute(t *testing.T) {
	router, id := newTestRouter(t)

	w := get(router, ROUTE_REQUEST+"?id="+id.Hex())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unfulfilled"`)
	assert.Contains(t, w.Body.String(), `"solver_fee":"1000"`)

	w = get(router, ROUTE_REQUEST)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// an unseen id is a 404, never a handler crash
	w = get(router, ROUTE_REQUEST+"?id="+ethcommon.Hash{0x01}.Hex())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown request id")
}

func TestReceiptRoute(t *testing.T) {
	router, id := newTestRouter(t)

	w := get(router, ROUTE_RECEIPT)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the source ledger never fulfilled anything, so even a live id has
	// no receipt here
	w = get(router, ROUTE_RECEIPT+"?id="+id.Hex())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown request id")
}

func TestFeesRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(router, ROUTE_FEES+"?token="+tokenIn.Hex())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"500"`)
}

func TestIdsRoute(t *testing.T) {
	router, id := newTestRouter(t)

	w := get(router, ROUTE_IDS)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.Hex())

	w = get(router, ROUTE_IDS+"?status=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJournalRoute(t *testing.T) {
	router, id := newTestRouter(t)

	w := get(router, ROUTE_JOURNAL)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"swap_requested"`)
	assert.Contains(t, w.Body.String(), id.Hex())

	// paging past the end is empty, not an error
	w = get(router, ROUTE_JOURNAL+"?since=100")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"events":[]`)

	w = get(router, ROUTE_JOURNAL+"?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
