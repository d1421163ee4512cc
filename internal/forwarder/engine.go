package forwarder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// Journal persists deposit lifecycle transitions for operator inspection.
// The tracker stays the source of truth; the journal is write-only from the
// engine's point of view.
type Journal interface {
	Record(deposit model.Deposit)
}

// Engine drives each deposit through its forwarding lifecycle. All entry
// points are safe to call concurrently from chain-layer callbacks; deposits
// for different txids make independent progress.
type Engine struct {
	logger  *logger.Logger
	btcRpc  btcrpc.IBtcRpc
	tracker *Tracker
	watcher *ConfirmationWatcher
	sink    EventSink
	journal Journal

	destinationAddress string
	fixedFee           btcutil.Amount
	requiredDepth      int64
}

// New constructs an engine forwarding to the fixed destination from
// appConfig. journal may be nil when the deposit journal is disabled.
func New(
	appConfig *config.AppConfig,
	logger *logger.Logger,
	btcRpc btcrpc.IBtcRpc,
	sink EventSink,
	journal Journal,
) *Engine {
	e := &Engine{
		logger:             logger,
		btcRpc:             btcRpc,
		tracker:            NewTracker(),
		sink:               sink,
		journal:            journal,
		destinationAddress: appConfig.Forwarder.DestinationAddress,
		fixedFee:           btcutil.Amount(appConfig.Forwarder.FixedFeeSats),
		requiredDepth:      appConfig.Forwarder.MinConfirmations,
	}
	e.watcher = NewConfirmationWatcher(logger, e.onConfirmation)

	return e
}

// OnDepositDetected registers a newly credited deposit and arms its
// confirmation watch. Duplicate notifications for a known txid are no-ops.
func (e *Engine) OnDepositDetected(txID string, valueReceived btcutil.Amount) {
	if !e.tracker.Register(txID, valueReceived) {
		e.logger.Debug("[OnDepositDetected] duplicate deposit event ignored", map[string]string{
			"txId": txID,
		})
		return
	}

	e.sink.Publish(DepositDetected{TxID: txID, Amount: valueReceived})

	// a deposit that cannot cover the fixed fee will never be forwardable,
	// so fail it now instead of arming a watch
	if _, err := ComputeForwardAmount(valueReceived, e.fixedFee); err != nil {
		e.fail(txID, model.FailureReasonInsufficientFunds, err)
		return
	}

	e.tracker.Transition(txID, model.DepositStatusDetected, model.DepositStatusAwaitingConfirmation)
	e.record(txID)

	e.watcher.Watch(txID, e.requiredDepth)
}

// OnDepth forwards one confirmation depth observation to the watcher.
func (e *Engine) OnDepth(txID string, depth int64) {
	e.watcher.OnDepth(txID, depth)
}

// PendingConfirmations lists txids the depth feed should keep observing.
func (e *Engine) PendingConfirmations() []string {
	return e.watcher.Pending()
}

// PendingForwards lists outbound txids awaiting broadcast completion.
func (e *Engine) PendingForwards() []string {
	return e.tracker.PendingForwards()
}

// OnBroadcastComplete marks the deposit behind an outbound transaction as
// broadcast, the terminal success state. Repeated notifications are no-ops.
func (e *Engine) OnBroadcastComplete(forwardTxID string) {
	txID, ok := e.tracker.ResolveForward(forwardTxID)
	if !ok {
		return
	}

	if !e.tracker.Transition(txID, model.DepositStatusForwarding, model.DepositStatusBroadcast) {
		return
	}
	e.record(txID)

	e.sink.Publish(ForwardBroadcast{TxID: txID, ForwardTxID: forwardTxID})
}

// OnChainFeedFatal escalates a dead confirmation feed: every pending watch
// completes with a fatal error and the operator gets a process-health event.
// The process itself keeps running.
func (e *Engine) OnChainFeedFatal(err error) {
	e.sink.Publish(ChainFeedDown{Err: err})
	e.watcher.FailAll(errors.Wrap(ErrChainFeedFatal, err.Error()))
}

// Deposits returns a snapshot of every tracked deposit.
func (e *Engine) Deposits() []model.Deposit {
	return e.tracker.Snapshot()
}

// onConfirmation is the watcher completion callback. The watcher fires it at
// most once per txid, but a second engine path (operator redrive racing a
// feed callback) is still guarded by the tracker's compare-and-set.
func (e *Engine) onConfirmation(txID string, watchErr error) {
	if watchErr != nil {
		if e.tracker.Fail(txID, model.FailureReasonChainFeedFatal) {
			e.record(txID)
			e.sink.Publish(ForwardFailed{TxID: txID, Reason: model.FailureReasonChainFeedFatal, Err: watchErr})
		}
		return
	}

	if e.tracker.Transition(txID, model.DepositStatusAwaitingConfirmation, model.DepositStatusConfirmed) {
		e.record(txID)
		e.sink.Publish(DepositConfirmed{TxID: txID})
	}

	if !e.tracker.TryBeginForward(txID) {
		// another path already owns this deposit, not an error
		return
	}
	e.record(txID)

	e.forward(txID)
}

// forward computes the amount and submits the outbound transaction for a
// deposit this goroutine has exclusively claimed.
func (e *Engine) forward(txID string) {
	deposit, ok := e.tracker.Get(txID)
	if !ok {
		return
	}

	amount, err := ComputeForwardAmount(btcutil.Amount(deposit.ValueReceived), e.fixedFee)
	if err != nil {
		e.fail(txID, model.FailureReasonInsufficientFunds, err)
		return
	}

	forwardTxID, networkFee, err := e.btcRpc.Send(e.destinationAddress, amount)
	if err != nil {
		e.fail(txID, classifySubmitError(err), err)
		return
	}

	e.tracker.SetForward(txID, forwardTxID, amount)
	e.record(txID)

	e.sink.Publish(ForwardSubmitted{
		TxID:        txID,
		ForwardTxID: forwardTxID,
		Amount:      amount,
		NetworkFee:  networkFee,
	})
}

// fail is deposit-scoped: it never aborts the process or other deposits.
func (e *Engine) fail(txID string, reason model.FailureReason, err error) {
	if !e.tracker.Fail(txID, reason) {
		return
	}
	e.record(txID)

	e.sink.Publish(ForwardFailed{TxID: txID, Reason: reason, Err: err})
}

func (e *Engine) record(txID string) {
	if e.journal == nil {
		return
	}

	if deposit, ok := e.tracker.Get(txID); ok {
		e.journal.Record(deposit)
	}
}

func classifySubmitError(err error) model.FailureReason {
	switch {
	case errors.Is(err, btcrpc.ErrSigningError):
		return model.FailureReasonSigningError
	case errors.Is(err, btcrpc.ErrInsufficientMoney):
		return model.FailureReasonInsufficientMoney
	default:
		return model.FailureReasonSubmission
	}
}
