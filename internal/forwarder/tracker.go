package forwarder

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/dwarvesf/btc-forwarder/internal/model"
)

// Status codes follow lifecycle order so transitions can be compared.
const (
	statusDetected int32 = iota
	statusAwaitingConfirmation
	statusConfirmed
	statusForwarding
	statusBroadcast
	statusFailed
)

var statusByCode = map[int32]model.DepositStatus{
	statusDetected:             model.DepositStatusDetected,
	statusAwaitingConfirmation: model.DepositStatusAwaitingConfirmation,
	statusConfirmed:            model.DepositStatusConfirmed,
	statusForwarding:           model.DepositStatusForwarding,
	statusBroadcast:            model.DepositStatusBroadcast,
	statusFailed:               model.DepositStatusFailed,
}

var codeByStatus = map[model.DepositStatus]int32{
	model.DepositStatusDetected:             statusDetected,
	model.DepositStatusAwaitingConfirmation: statusAwaitingConfirmation,
	model.DepositStatusConfirmed:            statusConfirmed,
	model.DepositStatusForwarding:           statusForwarding,
	model.DepositStatusBroadcast:            statusBroadcast,
	model.DepositStatusFailed:               statusFailed,
}

// entry is one tracked deposit. The status field is the compare-and-set
// point; every lifecycle transition goes through it, so deposits for
// different txids make independent progress. The mutex only guards the
// auxiliary fields.
type entry struct {
	txID          string
	valueReceived int64
	status        atomic.Int32

	mu            sync.Mutex
	reason        model.FailureReason
	forwardTxID   string
	forwardAmount int64
	createdAt     time.Time
	updatedAt     time.Time
}

func (e *entry) snapshot() model.Deposit {
	e.mu.Lock()
	defer e.mu.Unlock()

	return model.Deposit{
		TxID:          e.txID,
		ValueReceived: e.valueReceived,
		Status:        statusByCode[e.status.Load()],
		FailureReason: e.reason,
		ForwardTxID:   e.forwardTxID,
		ForwardAmount: e.forwardAmount,
		CreatedAt:     e.createdAt,
		UpdatedAt:     e.updatedAt,
	}
}

func (e *entry) touch() {
	e.mu.Lock()
	e.updatedAt = time.Now()
	e.mu.Unlock()
}

// Tracker is the single source of truth for deposit forwarding state.
type Tracker struct {
	mu        sync.RWMutex
	deposits  map[string]*entry
	byForward map[string]string
}

func NewTracker() *Tracker {
	return &Tracker{
		deposits:  make(map[string]*entry),
		byForward: make(map[string]string),
	}
}

// Register creates a deposit in the detected state. First registration wins:
// a duplicate event for a known txid is a no-op and returns false.
func (t *Tracker) Register(txID string, valueReceived btcutil.Amount) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.deposits[txID]; ok {
		return false
	}

	now := time.Now()
	e := &entry{
		txID:          txID,
		valueReceived: int64(valueReceived),
		createdAt:     now,
		updatedAt:     now,
	}
	e.status.Store(statusDetected)
	t.deposits[txID] = e

	return true
}

func (t *Tracker) get(txID string) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.deposits[txID]
	return e, ok
}

// Transition moves a deposit from one status to the next via compare-and-set.
// Returns false when the deposit is unknown or not in the expected state.
func (t *Tracker) Transition(txID string, from, to model.DepositStatus) bool {
	e, ok := t.get(txID)
	if !ok {
		return false
	}

	if !e.status.CompareAndSwap(codeByStatus[from], codeByStatus[to]) {
		return false
	}
	e.touch()

	return true
}

// TryBeginForward atomically claims a confirmed deposit for forwarding. This
// is the sole synchronization point preventing duplicate forwards: exactly
// one caller wins, concurrent or repeated callers get false.
func (t *Tracker) TryBeginForward(txID string) bool {
	return t.Transition(txID, model.DepositStatusConfirmed, model.DepositStatusForwarding)
}

// Fail diverts a deposit to the failed state from whatever non-terminal state
// it is in. Returns false if the deposit is unknown or already terminal.
func (t *Tracker) Fail(txID string, reason model.FailureReason) bool {
	e, ok := t.get(txID)
	if !ok {
		return false
	}

	for {
		current := e.status.Load()
		if current == statusBroadcast || current == statusFailed {
			return false
		}
		if e.status.CompareAndSwap(current, statusFailed) {
			e.mu.Lock()
			e.reason = reason
			e.updatedAt = time.Now()
			e.mu.Unlock()
			return true
		}
	}
}

// SetForward records the outbound transaction of a deposit that is being
// forwarded and indexes it for broadcast completion lookups.
func (t *Tracker) SetForward(txID, forwardTxID string, forwardAmount btcutil.Amount) {
	e, ok := t.get(txID)
	if !ok {
		return
	}

	e.mu.Lock()
	e.forwardTxID = forwardTxID
	e.forwardAmount = int64(forwardAmount)
	e.updatedAt = time.Now()
	e.mu.Unlock()

	t.mu.Lock()
	t.byForward[forwardTxID] = txID
	t.mu.Unlock()
}

// ResolveForward maps an outbound txid back to the deposit that produced it.
func (t *Tracker) ResolveForward(forwardTxID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	txID, ok := t.byForward[forwardTxID]
	return txID, ok
}

// Get returns a snapshot of one deposit.
func (t *Tracker) Get(txID string) (model.Deposit, bool) {
	e, ok := t.get(txID)
	if !ok {
		return model.Deposit{}, false
	}

	return e.snapshot(), true
}

// PendingForwards lists the outbound txids of deposits still waiting for
// broadcast completion.
func (t *Tracker) PendingForwards() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var forwards []string
	for forwardTxID, txID := range t.byForward {
		if e, ok := t.deposits[txID]; ok && e.status.Load() == statusForwarding {
			forwards = append(forwards, forwardTxID)
		}
	}

	return forwards
}

// Snapshot returns all tracked deposits, oldest first.
func (t *Tracker) Snapshot() []model.Deposit {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.deposits))
	for _, e := range t.deposits {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	deposits := make([]model.Deposit, 0, len(entries))
	for _, e := range entries {
		deposits = append(deposits, e.snapshot())
	}
	sort.Slice(deposits, func(i, j int) bool {
		if deposits[i].CreatedAt.Equal(deposits[j].CreatedAt) {
			return deposits[i].TxID < deposits[j].TxID
		}
		return deposits[i].CreatedAt.Before(deposits[j].CreatedAt)
	})

	return deposits
}
