package forwarder

import (
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/types/environments"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

type sendCall struct {
	address string
	amount  btcutil.Amount
}

// fakeBtcRpc is a hand-rolled chain layer recording submissions.
type fakeBtcRpc struct {
	mu      sync.Mutex
	sends   []sendCall
	sendErr error
}

func (f *fakeBtcRpc) Send(receiverAddress string, amount btcutil.Amount) (string, btcutil.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return "", 0, f.sendErr
	}
	f.sends = append(f.sends, sendCall{address: receiverAddress, amount: amount})
	return fmt.Sprintf("fwd-%d", len(f.sends)), 150, nil
}

func (f *fakeBtcRpc) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeBtcRpc) CurrentBalance() (btcutil.Amount, error)    { return 0, nil }
func (f *fakeBtcRpc) CurrentReceiveAddress() (string, error)     { return "tb1qwallet", nil }
func (f *fakeBtcRpc) GetConfirmationDepth(string) (int64, error) { return 0, nil }
func (f *fakeBtcRpc) IsPropagated(string) (bool, error)          { return false, nil }
func (f *fakeBtcRpc) GetIncomingTransactions(string) ([]model.OnchainBtcTransaction, error) {
	return nil, nil
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkRecorder) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *sinkRecorder) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.EventName())
	}
	return names
}

func newTestEngine(rpc btcrpc.IBtcRpc, sink EventSink) *Engine {
	appConfig := &config.AppConfig{
		Forwarder: config.ForwarderConfig{
			DestinationAddress: "tb1qdest",
			FixedFeeSats:       1_000,
			MinConfirmations:   1,
		},
	}
	return New(appConfig, logger.New(environments.Test), rpc, sink, nil)
}

func depositStatus(t *testing.T, e *Engine, txID string) model.Deposit {
	t.Helper()

	for _, d := range e.Deposits() {
		if d.TxID == txID {
			return d
		}
	}
	t.Fatalf("deposit %s not tracked", txID)
	return model.Deposit{}
}

// Scenario: 100,000 sats in, 1,000 sat fee, one confirmation required.
func TestEngine_ForwardsDepositOnceConfirmed(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	assert.Equal(t, model.DepositStatusAwaitingConfirmation, depositStatus(t, engine, "d1").Status)
	assert.Equal(t, []string{"d1"}, engine.PendingConfirmations())
	assert.Zero(t, rpc.sendCount())

	engine.OnDepth("d1", 1)

	require.Equal(t, 1, rpc.sendCount())
	assert.Equal(t, sendCall{address: "tb1qdest", amount: 99_000}, rpc.sends[0])

	deposit := depositStatus(t, engine, "d1")
	assert.Equal(t, model.DepositStatusForwarding, deposit.Status)
	assert.Equal(t, "fwd-1", deposit.ForwardTxID)
	assert.Equal(t, int64(99_000), deposit.ForwardAmount)
	assert.Equal(t, []string{"fwd-1"}, engine.PendingForwards())

	engine.OnBroadcastComplete("fwd-1")

	assert.Equal(t, model.DepositStatusBroadcast, depositStatus(t, engine, "d1").Status)
	assert.Empty(t, engine.PendingForwards())
	assert.Equal(t,
		[]string{"deposit_detected", "deposit_confirmed", "forward_submitted", "forward_broadcast"},
		sink.names())

	// duplicate broadcast completion is a no-op
	engine.OnBroadcastComplete("fwd-1")
	assert.Len(t, sink.names(), 4)
}

// Scenario: deposit below the fixed fee fails without touching the broadcaster.
func TestEngine_InsufficientFunds(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("small", 500)

	deposit := depositStatus(t, engine, "small")
	assert.Equal(t, model.DepositStatusFailed, deposit.Status)
	assert.Equal(t, model.FailureReasonInsufficientFunds, deposit.FailureReason)
	assert.Zero(t, rpc.sendCount())
	assert.Empty(t, engine.PendingConfirmations())
	assert.Equal(t, []string{"deposit_detected", "forward_failed"}, sink.names())
}

// Scenario: signing failure is terminal for that deposit only.
func TestEngine_SigningErrorIsDepositScoped(t *testing.T) {
	rpc := &fakeBtcRpc{sendErr: errors.Wrap(btcrpc.ErrSigningError, "wallet locked")}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	engine.OnDepth("d1", 1)

	deposit := depositStatus(t, engine, "d1")
	assert.Equal(t, model.DepositStatusFailed, deposit.Status)
	assert.Equal(t, model.FailureReasonSigningError, deposit.FailureReason)

	// an unrelated deposit still processes normally
	rpc.mu.Lock()
	rpc.sendErr = nil
	rpc.mu.Unlock()

	engine.OnDepositDetected("d2", 50_000)
	engine.OnDepth("d2", 1)

	assert.Equal(t, model.DepositStatusForwarding, depositStatus(t, engine, "d2").Status)
	assert.Equal(t, 1, rpc.sendCount())
}

func TestEngine_InsufficientMoneyClassification(t *testing.T) {
	rpc := &fakeBtcRpc{sendErr: errors.Wrap(btcrpc.ErrInsufficientMoney, "have 10, need 99000")}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	engine.OnDepth("d1", 1)

	deposit := depositStatus(t, engine, "d1")
	assert.Equal(t, model.DepositStatusFailed, deposit.Status)
	assert.Equal(t, model.FailureReasonInsufficientMoney, deposit.FailureReason)
}

// Scenario: two confirmation notifications back-to-back, one submission.
func TestEngine_DuplicateConfirmationIsNoOp(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	engine.OnDepth("d1", 1)
	engine.OnDepth("d1", 1)
	engine.OnDepth("d1", 2)

	assert.Equal(t, 1, rpc.sendCount())
}

func TestEngine_ConcurrentConfirmations(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			engine.OnDepth("d1", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rpc.sendCount())
}

func TestEngine_DuplicateDepositEventIgnored(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	engine.OnDepositDetected("d1", 100_000)

	assert.Len(t, engine.Deposits(), 1)
	assert.Equal(t, []string{"deposit_detected"}, sink.names())
}

func TestEngine_ChainFeedFatal(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnDepositDetected("d1", 100_000)
	engine.OnDepositDetected("d2", 200_000)

	engine.OnChainFeedFatal(errors.New("explorer unreachable"))

	for _, txID := range []string{"d1", "d2"} {
		deposit := depositStatus(t, engine, txID)
		assert.Equal(t, model.DepositStatusFailed, deposit.Status)
		assert.Equal(t, model.FailureReasonChainFeedFatal, deposit.FailureReason)
	}
	assert.Zero(t, rpc.sendCount())
	assert.Contains(t, sink.names(), "chain_feed_down")

	// the engine keeps servicing new deposits afterwards
	engine.OnDepositDetected("d3", 100_000)
	engine.OnDepth("d3", 1)
	assert.Equal(t, 1, rpc.sendCount())
}

func TestEngine_BroadcastForUnknownForwardIgnored(t *testing.T) {
	rpc := &fakeBtcRpc{}
	sink := &sinkRecorder{}
	engine := newTestEngine(rpc, sink)

	engine.OnBroadcastComplete("not-ours")
	assert.Empty(t, sink.names())
}
