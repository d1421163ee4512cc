package blockstream

type IBlockStream interface {
	BroadcastTx(txHex string) (hash string, err error)
	EstimateFees() (fees map[string]float64, err error)
	GetUTXOs(address string) ([]UTXO, error)
	GetAddressTxs(address string, lastSeenTxID string) ([]Transaction, error)
	GetTxStatus(txID string) (*TxStatus, error)
	GetTipHeight() (int64, error)
	GetBTCBalance(address string) (int64, error)
}
