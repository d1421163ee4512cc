package watchjob

import (
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/btc-forwarder/internal/forwarder"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/types/environments"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// fakeChain is a scripted chain layer: txs is the full address history,
// newest first, paged the way the explorer pages it.
type fakeChain struct {
	mu         sync.Mutex
	txs        []model.OnchainBtcTransaction
	depths     map[string]int64
	depthErr   error
	propagated map[string]bool
	sends      int
}

func (f *fakeChain) Send(receiverAddress string, amount btcutil.Amount) (string, btcutil.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return fmt.Sprintf("fwd-%d", f.sends), 150, nil
}

func (f *fakeChain) CurrentBalance() (btcutil.Amount, error) { return 0, nil }
func (f *fakeChain) CurrentReceiveAddress() (string, error)  { return "tb1qwallet", nil }

func (f *fakeChain) GetIncomingTransactions(lastSeenTxID string) ([]model.OnchainBtcTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if lastSeenTxID != "" {
		for i, tx := range f.txs {
			if tx.TransactionHash == lastSeenTxID {
				start = i + 1
				break
			}
		}
	}

	end := start + esploraPageSize
	if end > len(f.txs) {
		end = len(f.txs)
	}
	page := make([]model.OnchainBtcTransaction, end-start)
	copy(page, f.txs[start:end])

	return page, nil
}

func (f *fakeChain) GetConfirmationDepth(txID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.depthErr != nil {
		return 0, f.depthErr
	}
	return f.depths[txID], nil
}

func (f *fakeChain) IsPropagated(txID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.propagated[txID], nil
}

func (f *fakeChain) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func incomingTx(txID string, sats int64) model.OnchainBtcTransaction {
	return model.OnchainBtcTransaction{
		TransactionHash: txID,
		Amount:          sats,
		Type:            model.In,
	}
}

func newTestWatchJob(chain *fakeChain) (*WatchJob, *forwarder.Engine) {
	appConfig := &config.AppConfig{
		Forwarder: config.ForwarderConfig{
			DestinationAddress: "tb1qdest",
			FixedFeeSats:       1_000,
			MinConfirmations:   1,
		},
	}
	l := logger.New(environments.Test)
	engine := forwarder.New(appConfig, l, chain, forwarder.NewLogSink(l), nil)

	return New(appConfig, l, chain, engine), engine
}

func TestScanDeposits_FirstScanOnlySetsBaseline(t *testing.T) {
	chain := &fakeChain{txs: []model.OnchainBtcTransaction{
		incomingTx("old-2", 70_000),
		incomingTx("old-1", 50_000),
	}}
	job, engine := newTestWatchJob(chain)

	require.NoError(t, job.ScanDeposits())

	assert.Empty(t, engine.Deposits())
	assert.Equal(t, "old-2", job.lastSeenTxID)
}

func TestScanDeposits_ReportsNewCreditsOldestFirst(t *testing.T) {
	chain := &fakeChain{txs: []model.OnchainBtcTransaction{
		incomingTx("old-1", 50_000),
	}}
	job, engine := newTestWatchJob(chain)
	require.NoError(t, job.ScanDeposits())

	chain.mu.Lock()
	chain.txs = append([]model.OnchainBtcTransaction{
		incomingTx("new-2", 90_000),
		incomingTx("new-1", 80_000),
	}, chain.txs...)
	chain.mu.Unlock()

	require.NoError(t, job.ScanDeposits())

	deposits := engine.Deposits()
	require.Len(t, deposits, 2)
	assert.Equal(t, "new-1", deposits[0].TxID)
	assert.Equal(t, "new-2", deposits[1].TxID)
	assert.Equal(t, "new-2", job.lastSeenTxID)

	// a rescan without new history reports nothing
	require.NoError(t, job.ScanDeposits())
	assert.Len(t, engine.Deposits(), 2)
}

func TestScanDeposits_SkipsOutgoingTransactions(t *testing.T) {
	chain := &fakeChain{}
	job, engine := newTestWatchJob(chain)
	require.NoError(t, job.ScanDeposits())

	chain.mu.Lock()
	chain.txs = []model.OnchainBtcTransaction{
		{TransactionHash: "spend-1", Amount: 40_000, Type: model.Out},
		incomingTx("credit-1", 60_000),
	}
	chain.mu.Unlock()

	require.NoError(t, job.ScanDeposits())

	deposits := engine.Deposits()
	require.Len(t, deposits, 1)
	assert.Equal(t, "credit-1", deposits[0].TxID)
}

func TestScanDeposits_PagesThroughLongHistory(t *testing.T) {
	chain := &fakeChain{txs: []model.OnchainBtcTransaction{incomingTx("old-1", 10_000)}}
	job, engine := newTestWatchJob(chain)
	require.NoError(t, job.ScanDeposits())

	var fresh []model.OnchainBtcTransaction
	for i := 60; i >= 1; i-- {
		fresh = append(fresh, incomingTx(fmt.Sprintf("new-%d", i), 10_000))
	}
	chain.mu.Lock()
	chain.txs = append(fresh, chain.txs...)
	chain.mu.Unlock()

	require.NoError(t, job.ScanDeposits())

	assert.Len(t, engine.Deposits(), 60)
	assert.Equal(t, "new-60", job.lastSeenTxID)
}

func TestScanConfirmations_DrivesForward(t *testing.T) {
	chain := &fakeChain{depths: map[string]int64{}}
	job, engine := newTestWatchJob(chain)

	engine.OnDepositDetected("d1", 100_000)
	require.NoError(t, job.ScanConfirmations())
	assert.Zero(t, chain.sendCount())

	chain.mu.Lock()
	chain.depths["d1"] = 1
	chain.mu.Unlock()

	require.NoError(t, job.ScanConfirmations())
	assert.Equal(t, 1, chain.sendCount())
}

func TestScanConfirmations_SustainedFailuresKillTheWatch(t *testing.T) {
	chain := &fakeChain{depthErr: errors.New("explorer down")}
	job, engine := newTestWatchJob(chain)

	engine.OnDepositDetected("d1", 100_000)

	for i := 0; i < maxDepthFailures-1; i++ {
		require.Error(t, job.ScanConfirmations())
		assert.Equal(t, model.DepositStatusAwaitingConfirmation, engine.Deposits()[0].Status)
	}

	require.Error(t, job.ScanConfirmations())

	deposit := engine.Deposits()[0]
	assert.Equal(t, model.DepositStatusFailed, deposit.Status)
	assert.Equal(t, model.FailureReasonChainFeedFatal, deposit.FailureReason)
	assert.Empty(t, engine.PendingConfirmations())
}

func TestScanPropagation_CompletesBroadcast(t *testing.T) {
	chain := &fakeChain{
		depths:     map[string]int64{"d1": 1},
		propagated: map[string]bool{},
	}
	job, engine := newTestWatchJob(chain)

	engine.OnDepositDetected("d1", 100_000)
	require.NoError(t, job.ScanConfirmations())
	require.Equal(t, []string{"fwd-1"}, engine.PendingForwards())

	require.NoError(t, job.ScanPropagation())
	assert.Equal(t, []string{"fwd-1"}, engine.PendingForwards())

	chain.mu.Lock()
	chain.propagated["fwd-1"] = true
	chain.mu.Unlock()

	require.NoError(t, job.ScanPropagation())
	assert.Empty(t, engine.PendingForwards())
	assert.Equal(t, model.DepositStatusBroadcast, engine.Deposits()[0].Status)
}
