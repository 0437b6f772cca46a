// This is a http type of reporter.
// It fetches data from the settlement engine and its registry
// and publishes on the http routes. Read-only, no mutating surface.

package reporter

import (
	"net/http"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/settle"
)

const (
	ROUTE_HELLO   = "/hello"
	ROUTE_VERSION = "/version"
	ROUTE_REQUEST = "/request"
	ROUTE_RECEIPT = "/receipt"
	ROUTE_FEES    = "/fees"
	ROUTE_IDS     = "/ids"
	ROUTE_JOURNAL = "/journal"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data source
	engine *settle.Engine
}

func NewHttpReporter(serverIP string, serverPort string, engine *settle.Engine) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		engine:     engine,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_VERSION, h.Version)
	router.GET(ROUTE_REQUEST, h.Request)
	router.GET(ROUTE_RECEIPT, h.Receipt)
	router.GET(ROUTE_FEES, h.Fees)
	router.GET(ROUTE_IDS, h.Ids)
	router.GET(ROUTE_JOURNAL, h.Journal)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":  h.engine.Version(),
		"chain_id": h.engine.ChainId().String(),
		"fee_bps":  h.engine.FeeBps(),
	})
}

// Fetch one request record by id.
func (h *HttpReporter) Request(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be provided"})
		return
	}

	rec, err := h.engine.GetRequest(ethcommon.HexToHash(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
		return
	}

	refund := ""
	if rec.RefundAmount != nil {
		refund = rec.RefundAmount.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id":           rec.Request.RequestId().Hex(),
		"sender":               rec.Request.Sender.Hex(),
		"recipient":            rec.Request.Recipient.Hex(),
		"token_in":             rec.Request.TokenIn.Hex(),
		"token_out":            rec.Request.TokenOut.Hex(),
		"amount_out":           rec.Request.AmountOut.String(),
		"source_chain_id":      rec.Request.SourceChainId.String(),
		"destination_chain_id": rec.Request.DestinationChainId.String(),
		"verification_fee":     rec.Request.VerificationFee.String(),
		"solver_fee":           rec.Request.SolverFee.String(),
		"nonce":                rec.Request.Nonce,
		"status":               string(rec.Status),
		"refund_amount":        refund,
		"cancel_staged_at":     rec.CancelStagedAt,
	})
}

// Fetch one fulfillment receipt by request id.
func (h *HttpReporter) Receipt(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be provided"})
		return
	}

	receipt, err := h.engine.GetReceipt(ethcommon.HexToHash(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if receipt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":           receipt.RequestId.Hex(),
		"solver":               receipt.Solver.Hex(),
		"recipient":            receipt.Recipient.Hex(),
		"token_out":            receipt.TokenOut.Hex(),
		"amount_out":           receipt.AmountOut.String(),
		"source_chain_id":      receipt.SourceChainId.String(),
		"destination_chain_id": receipt.DestinationChainId.String(),
		"fulfilled_at":         receipt.FulfilledAt,
	})
}

// Fetch the accumulated fee balance of a token.
func (h *HttpReporter) Fees(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token must be provided"})
		return
	}

	balance, err := h.engine.FeeBalance(ethcommon.HexToAddress(token))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "balance": balance.String()})
}

// Fetch the membership set of a status.
func (h *HttpReporter) Ids(c *gin.Context) {
	status := agreement.RequestStatus(c.DefaultQuery("status", string(agreement.StatusUnfulfilled)))
	switch status {
	case agreement.StatusUnfulfilled, agreement.StatusFulfilled, agreement.StatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ids, err := h.engine.IdsByStatus(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hexIds := make([]string, len(ids))
	for i, id := range ids {
		hexIds[i] = id.Hex()
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status), "ids": hexIds})
}

// Fetch journal entries after a sequence number. Solvers poll this.
func (h *HttpReporter) Journal(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a number"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
		return
	}

	events, err := h.engine.Journal(since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, len(events))
	for i, ev := range events {
		amount := "0"
		if ev.Amount != nil {
			amount = ev.Amount.String()
		}
		out[i] = gin.H{
			"seq":        ev.Seq,
			"kind":       string(ev.Kind),
			"request_id": ev.RequestId.Hex(),
			"token":      ev.Token.Hex(),
			"amount":     amount,
			"at":         ev.At,
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
