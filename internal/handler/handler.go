package handler

import (
	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/handler/deposit"
	"github.com/dwarvesf/btc-forwarder/internal/handler/forward"
	"github.com/dwarvesf/btc-forwarder/internal/handler/health"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

type Handler struct {
	HealthHandler  health.IHealthHandler
	DepositHandler deposit.IHandler
	ForwardHandler forward.IHandler
}

func New(appConfig *config.AppConfig, logger *logger.Logger,
	btcRPC btcrpc.IBtcRpc,
	engine *forwarder.Engine) *Handler {
	return &Handler{
		HealthHandler:  health.New(appConfig, logger, btcRPC),
		DepositHandler: deposit.New(logger, engine),
		ForwardHandler: forward.New(logger, btcRPC, engine),
	}
}
