package repository

import (
	"context"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateAddress(ctx context.Context, address *models.Address, tx *gorm.DB) error {
	db := tx
	if tx == nil {
		db = r.db
	}

	return db.WithContext(ctx).Create(address).Error
}

// GetUserAddresses возвращает адреса, принадлежащие пользователю.
func (r *Repository) GetUserAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&addresses).
		Error

	if err != nil {
		r.logger.Errorf("failed to get addresses for user %d: %v", userID, err)
		return nil, fmt.Errorf("failed to get addresses for user %d: %w", userID, err)
	}
	return addresses, nil
}

// GetOwnedAddresses возвращает все адреса, привязанные хоть к какому-то
// пользователю (для сопоставления входящих UTXO с депозитами).
func (r *Repository) GetOwnedAddresses(ctx context.Context) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id IS NOT NULL").
		Find(&addresses).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to get owned addresses: %w", err)
	}
	return addresses, nil
}

func (r *Repository) CountAddresses(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Count(&count).Error
	return count, err
}
