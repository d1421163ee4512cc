package btcrpc

import "github.com/pkg/errors"

// Classified submission failures. Everything else coming out of Send is a
// transport error and is not terminal for the deposit being forwarded.
var (
	// ErrSigningError covers unusable key material: WIF decode failures and
	// witness signature failures.
	ErrSigningError = errors.New("signing error")

	// ErrInsufficientMoney means coin selection could not cover the requested
	// amount plus the network fee from the wallet's confirmed UTXOs.
	ErrInsufficientMoney = errors.New("insufficient money")
)
