package store

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/btc-forwarder/internal/model"
	"github.com/dwarvesf/btc-forwarder/internal/utils/logger"
)

// DepositJournal records engine lifecycle transitions in postgres. It is
// best-effort by design: the in-memory tracker is the source of truth and a
// journal write failure never blocks the forwarding path.
type DepositJournal struct {
	db     *gorm.DB
	store  *Store
	logger *logger.Logger
}

func NewDepositJournal(db *gorm.DB, store *Store, logger *logger.Logger) *DepositJournal {
	return &DepositJournal{
		db:     db,
		store:  store,
		logger: logger,
	}
}

func (j *DepositJournal) Record(deposit model.Deposit) {
	err := DoInTx(j.db, func(tx *gorm.DB) error {
		_, err := j.store.Deposit.Upsert(tx, &deposit)
		return err
	})
	if err != nil {
		j.logger.Error("[Record] failed to journal deposit transition", map[string]string{
			"txId":   deposit.TxID,
			"status": string(deposit.Status),
			"error":  err.Error(),
		})
	}
}
