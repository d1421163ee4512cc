package store

import (
	"github.com/dwarvesf/btc-forwarder/internal/store/deposit"
)

type Store struct {
	Deposit deposit.IStore
}

func New() *Store {
	return &Store{
		Deposit: deposit.New(),
	}
}
