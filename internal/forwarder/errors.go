package forwarder

import "github.com/pkg/errors"

var (
	// ErrInsufficientFunds means the received value does not exceed the fixed
	// forwarding fee, so there is nothing to forward.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrChainFeedFatal means the confirmation depth feed is permanently
	// unavailable. Deposit-scoped when it reaches a watcher callback; the
	// process itself keeps running.
	ErrChainFeedFatal = errors.New("chain feed fatal")
)
