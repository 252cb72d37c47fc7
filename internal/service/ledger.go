package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/shopspring/decimal"
)

// Balance выводит баланс пользователя из истории леджера. Баланс нигде
// не хранится как счётчик - он всегда чистая функция записей.
func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	records, err := s.repo.GetRecordsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return balanceFromRecords(userID, records), nil
}

// balanceFromRecords sums signed amounts. Owner-side rows count as is
// minus the fee; counterparty-side rows count with the sign flipped and
// never carry the fee.
func balanceFromRecords(userID int64, records []models.LedgerRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		switch {
		case rec.UserID == userID:
			total = total.Add(rec.Amount).Sub(rec.Fee)
		case rec.CounterpartyID != nil && *rec.CounterpartyID == userID:
			total = total.Sub(rec.Amount)
		}
	}
	return total
}

// InternalTransfer переводит средства между пользователями одной записью:
// у отправителя сумма со знаком минус, получатель читает её с обратным
// знаком. Сумма всех внутренних переводов по всем пользователям всегда
// равна нулю.
func (s *Service) InternalTransfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*models.LedgerRecord, error) {
	if fromID == toID {
		return nil, errors.New("sender and recipient must differ")
	}
	if !amount.IsPositive() {
		return nil, errors.New("transfer amount must be positive")
	}

	to, err := s.repo.GetUser(ctx, toID)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, errors.New("recipient not found")
	}

	mu := s.userLock(fromID)
	mu.Lock()
	defer mu.Unlock()

	balance, err := s.Balance(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: user %d has %s, needs %s",
			ErrInsufficientBalance, fromID, balance, amount)
	}

	record := &models.LedgerRecord{
		UserID:         fromID,
		Amount:         amount.Neg(),
		Fee:            decimal.Zero,
		Type:           models.RecordInternalTransfer,
		CounterpartyID: &toID,
	}

	if err := s.repo.AppendRecord(ctx, record, nil); err != nil {
		return nil, err
	}

	s.logger.Infof("Internal transfer: %s from user %d to user %d", amount, fromID, toID)
	return record, nil
}

// recordChainSend записывает состоявшийся вывод. Баланс проверяется ещё
// раз под блокировкой пользователя: вызывающий уже проверял его на шаге
// построения, но с тех пор мог пройти конкурентный перевод.
func (s *Service) recordChainSend(ctx context.Context, userID int64, amount, fee decimal.Decimal, destination, txID string) (*models.LedgerRecord, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount.Add(fee)) {
		return nil, fmt.Errorf("%w: user %d has %s, send needs %s",
			ErrInsufficientBalance, userID, balance, amount.Add(fee))
	}

	record := &models.LedgerRecord{
		UserID:              userID,
		Amount:              amount.Neg(),
		Fee:                 fee,
		Type:                models.RecordChainSend,
		CounterpartyAddress: destination,
		TxID:                txID,
	}

	if err := s.repo.AppendRecord(ctx, record, nil); err != nil {
		return nil, err
	}
	return record, nil
}
