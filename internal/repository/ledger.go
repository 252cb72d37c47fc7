package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	"gorm.io/gorm"
)

// AppendRecord вставляет новую запись в леджер. Записи никогда не
// обновляются и не удаляются - только добавляются.
func (r *Repository) AppendRecord(ctx context.Context, record *models.LedgerRecord, tx *gorm.DB) error {
	db := tx
	if tx == nil {
		db = r.db
	}

	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		r.logger.Errorf("failed to append ledger record for user %d: %v", record.UserID, err)
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	return nil
}

// GetRecordsByUser возвращает все записи, где пользователь владелец или
// контрагент. Баланс из них считает сервис.
func (r *Repository) GetRecordsByUser(ctx context.Context, userID int64) ([]models.LedgerRecord, error) {
	var records []models.LedgerRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? OR counterparty_id = ?", userID, userID).
		Order("id ASC").
		Find(&records).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to get ledger records for user %d: %w", userID, err)
	}
	return records, nil
}

// GetSendRecordByTxID ищет запись вывода по txid транзакции. Нужна,
// чтобы сдача собственного вывода не засчитывалась как депозит.
func (r *Repository) GetSendRecordByTxID(ctx context.Context, txID string) (*models.LedgerRecord, error) {
	var record models.LedgerRecord
	err := r.db.WithContext(ctx).
		Where("tx_id = ? AND type = ?", txID, models.RecordChainSend).
		First(&record).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get send record by tx %s: %w", txID, err)
	}

	return &record, nil
}

func (r *Repository) GetRecordByTx(ctx context.Context, txID string, address string) (*models.LedgerRecord, error) {
	var record models.LedgerRecord
	err := r.db.WithContext(ctx).
		Where("tx_id = ? AND counterparty_address = ?", txID, address).
		First(&record).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger record by tx %s: %w", txID, err)
	}

	return &record, nil
}
