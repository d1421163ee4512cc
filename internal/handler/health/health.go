package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// HealthHandler implements IHealthHandler interface
type HealthHandler struct {
	config *config.AppConfig
	logger *logger.Logger
	btcRPC btcrpc.IBtcRpc
}

// New creates a new health handler instance
func New(config *config.AppConfig, logger *logger.Logger, btcRPC btcrpc.IBtcRpc) IHealthHandler {
	return &HealthHandler{
		config: config,
		logger: logger,
		btcRPC: btcRPC,
	}
}

// Basic handles the basic health check endpoint (/healthz)
func (h *HealthHandler) Basic(c *gin.Context) {
	response := BasicHealthResponse{
		Message: "ok",
	}
	c.JSON(http.StatusOK, response)
}

// Chain validates explorer connectivity with a lightweight balance lookup.
func (h *HealthHandler) Chain(c *gin.Context) {
	start := time.Now()

	response := HealthResponse{
		Timestamp: start,
		Checks:    make(map[string]HealthCheck),
	}

	baseCtx := context.Background()
	if c.Request != nil {
		baseCtx = c.Request.Context()
	}
	ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
	defer cancel()

	check := h.checkBitcoinAPI(ctx)
	response.Checks["blockstream_api"] = check
	response.DurationMs = time.Since(start).Milliseconds()

	if check.Status == "healthy" {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

// checkBitcoinAPI performs Bitcoin API health validation
func (h *HealthHandler) checkBitcoinAPI(ctx context.Context) HealthCheck {
	start := time.Now()

	check := HealthCheck{}

	if h.btcRPC == nil {
		check.Status = "unhealthy"
		check.Error = "bitcoin rpc not available"
		check.Latency = time.Since(start).Milliseconds()
		return check
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := h.btcRPC.CurrentBalance()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			check.Status = "unhealthy"
			check.Error = err.Error()
		} else {
			check.Status = "healthy"
		}
	case <-checkCtx.Done():
		check.Status = "unhealthy"
		if checkCtx.Err() == context.DeadlineExceeded {
			check.Error = "timeout"
		} else {
			check.Error = checkCtx.Err().Error()
		}
	}

	check.Latency = time.Since(start).Milliseconds()
	return check
}
