package forwarder

import "github.com/btcsuite/btcd/btcutil"

// ComputeForwardAmount returns the amount to forward from a received value
// after subtracting the fixed fee. Pure integer arithmetic on satoshis; a
// non-positive result is ErrInsufficientFunds, never a clamped value.
func ComputeForwardAmount(valueReceived, fixedFee btcutil.Amount) (btcutil.Amount, error) {
	if valueReceived <= fixedFee {
		return 0, ErrInsufficientFunds
	}

	return valueReceived - fixedFee, nil
}
