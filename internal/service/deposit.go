package service

import (
	"context"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/shopspring/decimal"
)

// CheckDeposits сверяет UTXO пула с адресами пользователей и зачисляет
// новые подтверждённые поступления. Дедупликация по (txid, адрес): уже
// учтённый депозит второй раз в леджер не попадает. UTXO из наших же
// исходящих транзакций (сдача вывода) депозитами не считаются.
func (s *Service) CheckDeposits(ctx context.Context) (decimal.Decimal, error) {
	owned, err := s.repo.GetOwnedAddresses(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	ownerByAddress := make(map[string]int64, len(owned))
	for _, addr := range owned {
		if addr.UserID != nil {
			ownerByAddress[addr.Address] = *addr.UserID
		}
	}

	unspent, err := s.node.ListUnspent(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listunspent failed: %w", err)
	}

	credited := decimal.Zero
	for _, utxo := range unspent {
		if utxo.Confirmations < 1 {
			continue
		}
		userID, ok := ownerByAddress[utxo.Address]
		if !ok {
			continue
		}

		// Сдача нашего же вывода возвращается на адрес пользователя
		// тем же txid, что и запись chain_send. Запись хранит адрес
		// получателя, а не адрес сдачи, поэтому проверка по (txid,
		// адрес) её не поймает - ищем вывод по одному txid.
		send, err := s.repo.GetSendRecordByTxID(ctx, utxo.TxID)
		if err != nil {
			return credited, err
		}
		if send != nil {
			continue
		}

		existing, err := s.repo.GetRecordByTx(ctx, utxo.TxID, utxo.Address)
		if err != nil {
			return credited, err
		}
		if existing != nil {
			continue
		}

		record := &models.LedgerRecord{
			UserID:              userID,
			Amount:              utxo.Amount,
			Fee:                 decimal.Zero,
			Type:                models.RecordChainReceive,
			CounterpartyAddress: utxo.Address,
			TxID:                utxo.TxID,
		}
		if err := s.repo.AppendRecord(ctx, record, nil); err != nil {
			return credited, err
		}

		credited = credited.Add(utxo.Amount)
		s.logger.Infof("Credited deposit %s to user %d (tx %s)", utxo.Amount, userID, utxo.TxID)
	}

	return credited, nil
}
