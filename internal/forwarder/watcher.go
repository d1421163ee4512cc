package forwarder

import (
	"sync"

	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// ConfirmationCallback receives exactly one completion per watched txid. err
// is nil on confirmation and ErrChainFeedFatal when the depth feed died.
type ConfirmationCallback func(txID string, err error)

// ConfirmationWatcher holds the pending-notification registry keyed by txid.
// It carries no chain state of its own; depth observations are pushed in by
// the chain layer through OnDepth.
type ConfirmationWatcher struct {
	logger *logger.Logger
	notify ConfirmationCallback

	mu      sync.Mutex
	pending map[string]int64
	fired   map[string]struct{}
}

func NewConfirmationWatcher(logger *logger.Logger, notify ConfirmationCallback) *ConfirmationWatcher {
	return &ConfirmationWatcher{
		logger:  logger,
		notify:  notify,
		pending: make(map[string]int64),
		fired:   make(map[string]struct{}),
	}
}

// Watch registers a txid for a single completion once its confirmation depth
// reaches requiredDepth. Watching an already-watched or already-completed
// txid is a no-op and returns false: one deposit never gets two completions.
func (w *ConfirmationWatcher) Watch(txID string, requiredDepth int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.pending[txID]; ok {
		return false
	}
	if _, ok := w.fired[txID]; ok {
		return false
	}

	w.pending[txID] = requiredDepth
	return true
}

// Pending lists the txids still waiting for their confirmation depth.
func (w *ConfirmationWatcher) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	txIDs := make([]string, 0, len(w.pending))
	for txID := range w.pending {
		txIDs = append(txIDs, txID)
	}

	return txIDs
}

// OnDepth feeds one depth observation for a txid. Depths are expected to be
// monotonically non-decreasing per txid; the first observation at or above
// the required depth completes the watch, anything after that is ignored.
func (w *ConfirmationWatcher) OnDepth(txID string, depth int64) {
	w.mu.Lock()
	requiredDepth, ok := w.pending[txID]
	if !ok || depth < requiredDepth {
		w.mu.Unlock()
		return
	}
	delete(w.pending, txID)
	w.fired[txID] = struct{}{}
	w.mu.Unlock()

	w.notify(txID, nil)
}

// Fail completes a single watch with a fatal feed error.
func (w *ConfirmationWatcher) Fail(txID string, err error) {
	w.mu.Lock()
	if _, ok := w.pending[txID]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, txID)
	w.fired[txID] = struct{}{}
	w.mu.Unlock()

	w.notify(txID, err)
}

// FailAll completes every pending watch with a fatal feed error. Callers must
// not be left busy-waiting on a feed that will never answer.
func (w *ConfirmationWatcher) FailAll(err error) {
	w.mu.Lock()
	txIDs := make([]string, 0, len(w.pending))
	for txID := range w.pending {
		txIDs = append(txIDs, txID)
		w.fired[txID] = struct{}{}
	}
	w.pending = make(map[string]int64)
	w.mu.Unlock()

	for _, txID := range txIDs {
		w.notify(txID, err)
	}
}
