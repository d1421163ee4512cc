package server

import (
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/robfig/cron/v3"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/store"
	pgstore "github.com/dwarvesf/btc-forwarder/internal/store/postgres"
	"github.com/dwarvesf/btc-forwarder/internal/transport/http"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
	"github.com/dwarvesf/btc-forwarder/internal/watchjob"
)

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	if err := appConfig.Validate(); err != nil {
		logger.Fatal("invalid configuration", map[string]string{
			"error": err.Error(),
		})
	}

	btcRpc, err := btcrpc.New(appConfig, logger)
	if err != nil {
		logger.Fatal("failed to init btc rpc", map[string]string{
			"error": err.Error(),
		})
	}

	networkParams, err := appConfig.Bitcoin.NetworkParams()
	if err != nil {
		logger.Fatal("invalid bitcoin network", map[string]string{
			"error": err.Error(),
		})
	}
	if _, err := btcutil.DecodeAddress(appConfig.Forwarder.DestinationAddress, networkParams); err != nil {
		logger.Fatal("invalid forward destination address", map[string]string{
			"address": appConfig.Forwarder.DestinationAddress,
			"error":   err.Error(),
		})
	}

	var journal forwarder.Journal
	if appConfig.JournalEnabled() {
		db := pgstore.New(appConfig, logger)
		journal = store.NewDepositJournal(db, store.New(), logger)
	} else {
		logger.Info("deposit journal disabled, running in memory only")
	}

	engine := forwarder.New(appConfig, logger, btcRpc, forwarder.NewLogSink(logger), journal)

	logStartupDiagnostics(appConfig, logger, btcRpc)

	job := watchjob.New(appConfig, logger, btcRpc, engine)

	c := cron.New()
	c.AddFunc(appConfig.Forwarder.ScanInterval, func() {
		job.ScanDeposits()
		job.ScanConfirmations()
		job.ScanPropagation()
	})
	c.Start()

	httpServer := http.NewHttpServer(appConfig, logger, btcRpc, engine)

	httpServer.Run()
}

// logStartupDiagnostics prints what the operator needs to fund the wallet
// and verify the forwarding target before any coins move.
func logStartupDiagnostics(appConfig *config.AppConfig, logger *logger.Logger, btcRpc btcrpc.IBtcRpc) {
	address, err := btcRpc.CurrentReceiveAddress()
	if err != nil {
		logger.Fatal("failed to derive receive address", map[string]string{
			"error": err.Error(),
		})
	}

	fields := map[string]string{
		"network":          appConfig.Bitcoin.Network,
		"receiveAddress":   address,
		"destination":      appConfig.Forwarder.DestinationAddress,
		"fixedFeeSats":     strconv.FormatInt(appConfig.Forwarder.FixedFeeSats, 10),
		"minConfirmations": strconv.FormatInt(appConfig.Forwarder.MinConfirmations, 10),
	}

	balance, err := btcRpc.CurrentBalance()
	if err != nil {
		logger.Error("failed to fetch wallet balance", map[string]string{
			"error": err.Error(),
		})
	} else {
		fields["balanceSats"] = strconv.FormatInt(int64(balance), 10)
	}

	logger.Info("forwarding service ready, send coins to the receive address", fields)
}
