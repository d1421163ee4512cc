package forward

import "github.com/dwarvesf/btc-forwarder/internal/model"

// RedriveRequest re-announces a deposit the scanner missed
type RedriveRequest struct {
	TxID       string `json:"tx_id" binding:"required"`
	AmountSats int64  `json:"amount_sats" binding:"required,gt=0"`
}

// RedriveResponse reports the tracked state after the redrive
type RedriveResponse struct {
	Deposit model.Deposit `json:"deposit"`
}

// WalletResponse reports the watched wallet's receive address and balance
type WalletResponse struct {
	Address     string `json:"address"`
	BalanceSats int64  `json:"balance_sats"`
}
