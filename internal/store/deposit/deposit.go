package deposit

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/btc-forwarder/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

// Upsert writes the current state of a deposit keyed by its txid, so the
// journal row always reflects the latest lifecycle transition.
func (s *store) Upsert(tx *gorm.DB, deposit *model.Deposit) (*model.Deposit, error) {
	deposit.UpdatedAt = time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tx_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "failure_reason", "forward_tx_id", "forward_amount", "updated_at",
		}),
	}).Create(deposit).Error
	if err != nil {
		return nil, err
	}

	return deposit, nil
}

func (s *store) GetByTxID(tx *gorm.DB, txID string) (*model.Deposit, error) {
	var deposit model.Deposit
	result := tx.Where("tx_id = ?", txID).First(&deposit)
	if result.Error != nil {
		return nil, result.Error
	}

	return &deposit, nil
}

func (s *store) GetLatest(tx *gorm.DB) (*model.Deposit, error) {
	var deposit model.Deposit
	result := tx.Order("created_at DESC").First(&deposit)
	if result.Error != nil {
		return nil, result.Error
	}

	return &deposit, nil
}

func (s *store) Find(tx *gorm.DB, filter ListFilter) ([]model.Deposit, int64, error) {
	var deposits []model.Deposit
	var total int64

	query := tx.Model(&model.Deposit{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	query = query.Offset(filter.Offset).Order("updated_at DESC")

	if err := query.Find(&deposits).Error; err != nil {
		return nil, 0, err
	}

	return deposits, total, nil
}
