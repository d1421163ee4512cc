package btcrpc

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/dwarvesf/btc-forwarder/internal/model"
)

type IBtcRpc interface {
	// Send builds, signs and broadcasts a transaction paying amount to
	// receiverAddress from the wallet's confirmed UTXOs. Returns the outbound
	// txid and the network fee actually paid. Failures are classified as
	// ErrSigningError or ErrInsufficientMoney where applicable.
	Send(receiverAddress string, amount btcutil.Amount) (txID string, networkFee btcutil.Amount, err error)

	// CurrentBalance returns the confirmed balance of the watched address.
	CurrentBalance() (btcutil.Amount, error)

	// CurrentReceiveAddress returns the wallet's own P2WPKH address.
	CurrentReceiveAddress() (string, error)

	// GetIncomingTransactions lists transactions touching the watched address,
	// newest first. A non-empty lastSeenTxID acts as a paging cursor: only
	// transactions older than it are returned.
	GetIncomingTransactions(lastSeenTxID string) ([]model.OnchainBtcTransaction, error)

	// GetConfirmationDepth returns the confirmation depth of a transaction:
	// 0 while unconfirmed, 1 when included in the chain tip, and so on.
	GetConfirmationDepth(txID string) (int64, error)

	// IsPropagated reports whether the transaction has been seen by the
	// network (mempool or chain).
	IsPropagated(txID string) (bool, error)
}
