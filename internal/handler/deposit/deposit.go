package deposit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

type depositHandler struct {
	logger *logger.Logger
	engine *forwarder.Engine
}

// New creates a new deposit handler instance
func New(logger *logger.Logger, engine *forwarder.Engine) IHandler {
	return &depositHandler{
		logger: logger,
		engine: engine,
	}
}

// List returns tracked deposits with optional status filtering
func (h *depositHandler) List(c *gin.Context) {
	var req ListDepositsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	deposits := h.engine.Deposits()
	if req.Status != "" {
		filtered := make([]model.Deposit, 0, len(deposits))
		for _, d := range deposits {
			if string(d.Status) == req.Status {
				filtered = append(filtered, d)
			}
		}
		deposits = filtered
	}

	total := len(deposits)
	start := req.Offset
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, ListDepositsResponse{
		Total:    total,
		Deposits: deposits[start:end],
	})
}
