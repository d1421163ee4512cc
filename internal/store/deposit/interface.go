package deposit

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/btc-forwarder/internal/model"
)

type ListFilter struct {
	Status model.DepositStatus
	Limit  int
	Offset int
}

type IStore interface {
	Upsert(tx *gorm.DB, deposit *model.Deposit) (*model.Deposit, error)
	GetByTxID(tx *gorm.DB, txID string) (*model.Deposit, error)
	GetLatest(tx *gorm.DB) (*model.Deposit, error)
	Find(tx *gorm.DB, filter ListFilter) ([]model.Deposit, int64, error)
}
