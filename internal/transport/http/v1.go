package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/btc-forwarder/internal/handler"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger) {
	v1 := r.Group("/api/v1")

	deposits := v1.Group("/deposits")
	{
		deposits.GET("", h.DepositHandler.List)
	}

	forwards := v1.Group("/forwards")
	{
		forwards.POST("/redrive", h.ForwardHandler.Redrive)
	}

	v1.GET("/wallet", h.ForwardHandler.Wallet)
	v1.GET("/health/chain", h.HealthHandler.Chain)

	// health check
	r.GET("/healthz", h.HealthHandler.Basic)
}
