package model

type TransactionType string

const (
	In  TransactionType = "in"
	Out TransactionType = "out"
)

// OnchainBtcTransaction is a transaction touching the watched address as seen
// by the chain layer. Amount is the net value credited to (or debited from)
// the address, in satoshis.
type OnchainBtcTransaction struct {
	TransactionHash string          `json:"transaction_hash"`
	Amount          int64           `json:"amount"`
	Type            TransactionType `json:"type"`
	Confirmed       bool            `json:"confirmed"`
}
