package watchjob

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/btcrpc/blockstream"
	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// esploraPageSize is the fixed page size of address transaction listings.
const esploraPageSize = 25

// maxDepthFailures is how many consecutive depth scan failures we tolerate
// before declaring the confirmation feed dead.
const maxDepthFailures = 10

// WatchJob polls the explorer and turns chain state into engine
// notifications: new credits, confirmation depths and forward propagation.
type WatchJob struct {
	appConfig *config.AppConfig
	logger    *logger.Logger
	btcRpc    btcrpc.IBtcRpc
	engine    *forwarder.Engine

	mu            sync.Mutex
	lastSeenTxID  string
	initialized   bool
	depthFailures int
}

func New(appConfig *config.AppConfig, logger *logger.Logger, btcRpc btcrpc.IBtcRpc, engine *forwarder.Engine) *WatchJob {
	return &WatchJob{
		appConfig: appConfig,
		logger:    logger,
		btcRpc:    btcRpc,
		engine:    engine,
	}
}

// ScanDeposits walks the watched address history down to the last seen
// transaction and reports each new incoming credit to the engine. The first
// scan only establishes the cursor: funds already on the wallet when the
// service starts are not forwarded.
func (w *WatchJob) ScanDeposits() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	newTxs, newestTxID, err := w.collectNewTransactions()
	if err != nil {
		w.logger.Error("[ScanDeposits][collectNewTransactions]", map[string]string{
			"error": err.Error(),
		})
		return err
	}

	if !w.initialized {
		w.initialized = true
		w.lastSeenTxID = newestTxID
		w.logger.Info("[ScanDeposits] watch baseline established", map[string]string{
			"lastSeenTxId": newestTxID,
		})
		return nil
	}

	if newestTxID != "" {
		w.lastSeenTxID = newestTxID
	}

	// oldest first, so deposits are registered in chain order
	for i := len(newTxs) - 1; i >= 0; i-- {
		tx := newTxs[i]
		if tx.Type != model.In || tx.Amount == 0 {
			continue
		}
		w.engine.OnDepositDetected(tx.TransactionHash, btcutil.Amount(tx.Amount))
	}

	return nil
}

// collectNewTransactions pages through the address history, newest first,
// stopping at the current cursor. Returns the new transactions and the txid
// to use as the next cursor.
func (w *WatchJob) collectNewTransactions() ([]model.OnchainBtcTransaction, string, error) {
	var collected []model.OnchainBtcTransaction
	newestTxID := w.lastSeenTxID
	pageCursor := ""

	for {
		page, err := w.btcRpc.GetIncomingTransactions(pageCursor)
		if err != nil {
			return nil, "", err
		}
		if len(page) == 0 {
			break
		}

		if pageCursor == "" {
			newestTxID = page[0].TransactionHash
		}

		reachedCursor := false
		for i, tx := range page {
			if tx.TransactionHash == w.lastSeenTxID {
				page = page[:i]
				reachedCursor = true
				break
			}
		}
		collected = append(collected, page...)

		if reachedCursor || len(page) < esploraPageSize {
			break
		}
		pageCursor = page[len(page)-1].TransactionHash
	}

	return collected, newestTxID, nil
}

// ScanConfirmations feeds the current confirmation depth of every watched
// deposit into the engine. Sustained feed failures escalate to a fatal
// chain feed event; the job itself keeps running.
func (w *WatchJob) ScanConfirmations() error {
	pending := w.engine.PendingConfirmations()
	if len(pending) == 0 {
		return nil
	}

	var lastErr error
	for _, txID := range pending {
		depth, err := w.btcRpc.GetConfirmationDepth(txID)
		if err != nil {
			if errors.Is(err, blockstream.ErrTxNotFound) {
				// dropped from the mempool, keep watching in case it comes back
				w.logger.Debug("[ScanConfirmations] deposit not found on chain", map[string]string{
					"txId": txID,
				})
				continue
			}
			lastErr = err
			w.logger.Error("[ScanConfirmations][GetConfirmationDepth]", map[string]string{
				"txId":  txID,
				"error": err.Error(),
			})
			continue
		}

		w.noteDepthFeedHealthy()
		if depth > 0 {
			w.engine.OnDepth(txID, depth)
		}
	}

	if lastErr != nil && w.noteDepthFeedFailure() {
		w.engine.OnChainFeedFatal(lastErr)
	}

	return lastErr
}

// ScanPropagation checks whether submitted forwards have been seen by the
// network and completes their broadcast tracking.
func (w *WatchJob) ScanPropagation() error {
	var lastErr error
	for _, forwardTxID := range w.engine.PendingForwards() {
		propagated, err := w.btcRpc.IsPropagated(forwardTxID)
		if err != nil {
			lastErr = err
			w.logger.Error("[ScanPropagation][IsPropagated]", map[string]string{
				"forwardTxId": forwardTxID,
				"error":       err.Error(),
			})
			continue
		}
		if propagated {
			w.engine.OnBroadcastComplete(forwardTxID)
		}
	}

	return lastErr
}

func (w *WatchJob) noteDepthFeedHealthy() {
	w.mu.Lock()
	w.depthFailures = 0
	w.mu.Unlock()
}

// noteDepthFeedFailure returns true when the failure threshold is crossed.
func (w *WatchJob) noteDepthFeedFailure() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.depthFailures++
	if w.depthFailures < maxDepthFailures {
		return false
	}
	w.depthFailures = 0

	return true
}
