package model

import "time"

type DepositStatus string

const (
	DepositStatusDetected             DepositStatus = "detected"
	DepositStatusAwaitingConfirmation DepositStatus = "awaiting_confirmation"
	DepositStatusConfirmed            DepositStatus = "confirmed"
	DepositStatusForwarding           DepositStatus = "forwarding"
	DepositStatusBroadcast            DepositStatus = "broadcast"
	DepositStatusFailed               DepositStatus = "failed"
)

type FailureReason string

const (
	FailureReasonInsufficientFunds FailureReason = "insufficient_funds"
	FailureReasonInsufficientMoney FailureReason = "insufficient_money"
	FailureReasonSigningError      FailureReason = "signing_error"
	FailureReasonChainFeedFatal    FailureReason = "chain_feed_fatal"
	FailureReasonSubmission        FailureReason = "submission_error"
)

// Deposit is one incoming payment to the watched wallet, tracked through its
// forwarding lifecycle. Amounts are satoshis.
type Deposit struct {
	ID            int           `json:"id" gorm:"primaryKey"`
	TxID          string        `json:"tx_id" gorm:"uniqueIndex;column:tx_id"`
	ValueReceived int64         `json:"value_received"`
	Status        DepositStatus `json:"status"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	ForwardTxID   string        `json:"forward_tx_id,omitempty" gorm:"column:forward_tx_id"`
	ForwardAmount int64         `json:"forward_amount,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Terminal reports whether the deposit has reached an end state.
func (s DepositStatus) Terminal() bool {
	return s == DepositStatusBroadcast || s == DepositStatusFailed
}
