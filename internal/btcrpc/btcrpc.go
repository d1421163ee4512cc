package btcrpc

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"

	"github.com/dwarvesf/btc-forwarder/internal/btcrpc/blockstream"
	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/config"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

type BtcRpc struct {
	appConfig     *config.AppConfig
	logger        *logger.Logger
	blockstream   blockstream.IBlockStream
	networkParams *chaincfg.Params
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (IBtcRpc, error) {
	networkParams, err := appConfig.Bitcoin.NetworkParams()
	if err != nil {
		return nil, err
	}

	return &BtcRpc{
		appConfig:     appConfig,
		logger:        logger,
		blockstream:   blockstream.New(appConfig, logger),
		networkParams: networkParams,
	}, nil
}

func (b *BtcRpc) Send(receiverAddress string, amount btcutil.Amount) (string, btcutil.Amount, error) {
	privKey, senderAddress, err := b.getSelfPrivKeyAndAddress(b.appConfig.Bitcoin.WalletWIF)
	if err != nil {
		return "", 0, errors.Wrap(ErrSigningError, err.Error())
	}

	receiver, err := btcutil.DecodeAddress(receiverAddress, b.networkParams)
	if err != nil {
		return "", 0, errors.Wrapf(err, "failed to decode receiver address %s", receiverAddress)
	}

	selectedUTXOs, changeAmount, networkFee, err := b.selectUTXOs(senderAddress.EncodeAddress(), int64(amount))
	if err != nil {
		return "", 0, err
	}

	tx, err := b.prepareTx(selectedUTXOs, receiver, senderAddress, int64(amount), changeAmount)
	if err != nil {
		return "", 0, err
	}

	if err := b.sign(tx, privKey, senderAddress, selectedUTXOs); err != nil {
		return "", 0, errors.Wrap(ErrSigningError, err.Error())
	}

	txID, err := b.broadcast(tx)
	if err != nil {
		return "", 0, err
	}

	return txID, btcutil.Amount(networkFee), nil
}

func (b *BtcRpc) CurrentBalance() (btcutil.Amount, error) {
	address, err := b.CurrentReceiveAddress()
	if err != nil {
		return 0, err
	}

	balance, err := b.blockstream.GetBTCBalance(address)
	if err != nil {
		return 0, err
	}

	return btcutil.Amount(balance), nil
}

func (b *BtcRpc) CurrentReceiveAddress() (string, error) {
	_, address, err := b.getSelfPrivKeyAndAddress(b.appConfig.Bitcoin.WalletWIF)
	if err != nil {
		return "", errors.Wrap(ErrSigningError, err.Error())
	}

	return address.EncodeAddress(), nil
}

func (b *BtcRpc) GetIncomingTransactions(lastSeenTxID string) ([]model.OnchainBtcTransaction, error) {
	address, err := b.CurrentReceiveAddress()
	if err != nil {
		return nil, err
	}

	rawTxs, err := b.blockstream.GetAddressTxs(address, lastSeenTxID)
	if err != nil {
		return nil, err
	}

	txs := make([]model.OnchainBtcTransaction, 0, len(rawTxs))
	for _, raw := range rawTxs {
		txs = append(txs, classifyAddressTx(raw, address))
	}

	return txs, nil
}

func (b *BtcRpc) GetConfirmationDepth(txID string) (int64, error) {
	status, err := b.blockstream.GetTxStatus(txID)
	if err != nil {
		return 0, err
	}

	if !status.Confirmed {
		return 0, nil
	}

	tipHeight, err := b.blockstream.GetTipHeight()
	if err != nil {
		return 0, err
	}

	depth := tipHeight - status.BlockHeight + 1
	if depth < 0 {
		// tip moved backwards between the two calls, treat as unconfirmed
		return 0, nil
	}

	return depth, nil
}

func (b *BtcRpc) IsPropagated(txID string) (bool, error) {
	_, err := b.blockstream.GetTxStatus(txID)
	if err != nil {
		if errors.Is(err, blockstream.ErrTxNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// classifyAddressTx nets a raw explorer transaction against the watched
// address: vouts paying the address minus vins spending from it. A positive
// net is an incoming deposit; a negative net is our own spend.
func classifyAddressTx(raw blockstream.Transaction, address string) model.OnchainBtcTransaction {
	var received, spent int64
	for _, vout := range raw.Vout {
		if vout.ScriptPubKeyAddress == address {
			received += vout.Value
		}
	}
	for _, vin := range raw.Vin {
		if vin.Prevout != nil && vin.Prevout.ScriptPubKeyAddress == address {
			spent += vin.Prevout.Value
		}
	}

	net := received - spent
	tx := model.OnchainBtcTransaction{
		TransactionHash: raw.TxID,
		Confirmed:       raw.Status.Confirmed,
	}
	if net >= 0 {
		tx.Amount = net
		tx.Type = model.In
	} else {
		tx.Amount = -net
		tx.Type = model.Out
	}

	return tx
}
