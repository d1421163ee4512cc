package forwarder

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// Event is one of the closed set of lifecycle notifications the engine emits.
// The operator layer renders these; the engine never reports raw text.
type Event interface {
	EventName() string
}

type DepositDetected struct {
	TxID   string
	Amount btcutil.Amount
}

func (DepositDetected) EventName() string { return "deposit_detected" }

type DepositConfirmed struct {
	TxID string
}

func (DepositConfirmed) EventName() string { return "deposit_confirmed" }

type ForwardSubmitted struct {
	TxID        string
	ForwardTxID string
	Amount      btcutil.Amount
	NetworkFee  btcutil.Amount
}

func (ForwardSubmitted) EventName() string { return "forward_submitted" }

type ForwardBroadcast struct {
	TxID        string
	ForwardTxID string
}

func (ForwardBroadcast) EventName() string { return "forward_broadcast" }

type ForwardFailed struct {
	TxID   string
	Reason model.FailureReason
	Err    error
}

func (ForwardFailed) EventName() string { return "forward_failed" }

// ChainFeedDown is a process-health event: the confirmation feed itself is
// unusable, not any single deposit.
type ChainFeedDown struct {
	Err error
}

func (ChainFeedDown) EventName() string { return "chain_feed_down" }

type EventSink interface {
	Publish(event Event)
}

type logSink struct {
	logger *logger.Logger
}

// NewLogSink returns an EventSink that renders every lifecycle event through
// the structured logger.
func NewLogSink(l *logger.Logger) EventSink {
	return &logSink{logger: l}
}

func (s *logSink) Publish(event Event) {
	switch e := event.(type) {
	case DepositDetected:
		s.logger.Info("[Event] deposit detected", map[string]string{
			"txId":   e.TxID,
			"amount": e.Amount.String(),
		})
	case DepositConfirmed:
		s.logger.Info("[Event] deposit confirmed", map[string]string{
			"txId": e.TxID,
		})
	case ForwardSubmitted:
		s.logger.Info("[Event] forward submitted", map[string]string{
			"txId":        e.TxID,
			"forwardTxId": e.ForwardTxID,
			"amount":      e.Amount.String(),
			"networkFee":  e.NetworkFee.String(),
		})
	case ForwardBroadcast:
		s.logger.Info("[Event] forward broadcast", map[string]string{
			"txId":        e.TxID,
			"forwardTxId": e.ForwardTxID,
		})
	case ForwardFailed:
		fields := map[string]string{
			"txId":   e.TxID,
			"reason": string(e.Reason),
		}
		if e.Err != nil {
			fields["error"] = e.Err.Error()
		}
		s.logger.Error("[Event] forward failed", fields)
	case ChainFeedDown:
		s.logger.Error("[Event] chain feed down", map[string]string{
			"error": e.Err.Error(),
		})
	default:
		s.logger.Info("[Event] "+event.EventName(), nil)
	}
}
