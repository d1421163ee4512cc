package forward

import (
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

type forwardHandler struct {
	logger *logger.Logger
	btcRpc btcrpc.IBtcRpc
	engine *forwarder.Engine
}

// New creates a new forward handler instance
func New(logger *logger.Logger, btcRpc btcrpc.IBtcRpc, engine *forwarder.Engine) IHandler {
	return &forwardHandler{
		logger: logger,
		btcRpc: btcRpc,
		engine: engine,
	}
}

// Redrive re-announces a deposit to the engine, for credits the scanner
// missed. Already-tracked txids keep their existing state; the response
// reflects whatever the engine tracks after the call.
func (h *forwardHandler) Redrive(c *gin.Context) {
	var req RedriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("[Redrive] operator redrive requested", map[string]string{
		"txId": req.TxID,
	})
	h.engine.OnDepositDetected(req.TxID, btcutil.Amount(req.AmountSats))

	for _, d := range h.engine.Deposits() {
		if d.TxID == req.TxID {
			c.JSON(http.StatusAccepted, RedriveResponse{Deposit: d})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit not tracked after redrive"})
}

// Wallet returns the watched receive address and its confirmed balance
func (h *forwardHandler) Wallet(c *gin.Context) {
	address, err := h.btcRpc.CurrentReceiveAddress()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.btcRpc.CurrentBalance()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, WalletResponse{
		Address:     address,
		BalanceSats: int64(balance),
	})
}
