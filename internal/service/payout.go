package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/shopspring/decimal"
)

type PayoutState string

const (
	PayoutCreated   PayoutState = "created"
	PayoutBuilt     PayoutState = "built"
	PayoutSigned    PayoutState = "signed"
	PayoutBroadcast PayoutState = "broadcast"
	PayoutRecorded  PayoutState = "recorded"
	PayoutFailed    PayoutState = "failed"
)

// PayoutResult is never ambiguous: either State is PayoutRecorded with
// TxID and Record set, or State is PayoutFailed and the returned error
// carries the tagged reason. TxID is also set on a failed result if the
// transaction was already broadcast.
type PayoutResult struct {
	State  PayoutState
	TxID   string
	Record *models.LedgerRecord
}

// pendingTransaction - состояние одного вывода в полёте. Живёт только в
// рамках одного вызова Payout и передаётся между шагами как локальное
// значение: никакой "подвисшей" подписанной hex между несвязанными
// попытками.
type pendingTransaction struct {
	userID        int64
	destination   string
	changeAddress string
	amount        decimal.Decimal
	fee           decimal.Decimal
	inputs        []models.UnspentOutput
	total         decimal.Decimal
	change        decimal.Decimal
	rawHex        string
	signedHex     string
	txID          string
}

func sumInputs(inputs []models.UnspentOutput) decimal.Decimal {
	total := decimal.Zero
	for _, in := range inputs {
		total = total.Add(in.Amount)
	}
	return total
}

// Payout гонит запрос пользователя через конечный автомат
// created -> built -> signed -> broadcast -> recorded. Отказ на любом
// шаге до broadcast не трогает леджер: средства никуда не ушли, UTXO
// остаются доступными для следующей попытки.
func (s *Service) Payout(ctx context.Context, userID int64, destination string, amount decimal.Decimal) (*PayoutResult, error) {
	result := &PayoutResult{State: PayoutCreated}

	if !amount.IsPositive() {
		return s.failPayout(result, errors.New("payout amount must be positive"))
	}
	if destination == "" {
		return s.failPayout(result, errors.New("destination address is required"))
	}

	fee := s.defaultFee
	// Селектору всегда отдаётся amount+fee. Если целиться только в
	// amount, сдача уходит в минус на последнем шаге.
	target := amount.Add(fee)

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return s.failPayout(result, err)
	}
	if balance.LessThan(target) {
		return s.failPayout(result, fmt.Errorf("%w: user %d has %s, payout needs %s",
			ErrInsufficientBalance, userID, balance, target))
	}

	addresses, err := s.repo.GetUserAddresses(ctx, userID)
	if err != nil {
		return s.failPayout(result, err)
	}
	if len(addresses) == 0 {
		return s.failPayout(result, fmt.Errorf("%w: user %d", ErrNoChangeAddress, userID))
	}

	pending := &pendingTransaction{
		userID:        userID,
		destination:   destination,
		changeAddress: addresses[0].Address,
		amount:        amount,
		fee:           fee,
	}

	// От получения списка UTXO до отправки в сеть пул держится под
	// замком: конкурентное построение выбрало бы те же выходы и одно из
	// двух вещаний стало бы double-spend.
	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	// Проверка баланса выше шла без замков и могла пройти по устаревшему
	// состоянию: конкурентный вывод того же пользователя уже записан в
	// леджер к моменту, когда мы дождались пула. Перепроверяем до любого
	// вещания, иначе второй вывод уйдёт в сеть.
	userMu := s.userLock(userID)
	userMu.Lock()
	balance, err = s.Balance(ctx, userID)
	userMu.Unlock()
	if err != nil {
		return s.failPayout(result, err)
	}
	if balance.LessThan(target) {
		return s.failPayout(result, fmt.Errorf("%w: user %d has %s, payout needs %s",
			ErrInsufficientBalance, userID, balance, target))
	}

	unspent, err := s.node.ListUnspent(ctx)
	if err != nil {
		return s.failPayout(result, fmt.Errorf("listunspent failed: %w", err))
	}

	pending.inputs, _, err = SelectUnspent(unspent, target)
	if err != nil {
		return s.failPayout(result, err)
	}

	if err := s.buildRawTransaction(ctx, pending); err != nil {
		return s.failPayout(result, err)
	}
	if err := s.verifyBuiltTransaction(ctx, pending); err != nil {
		return s.failPayout(result, err)
	}
	result.State = PayoutBuilt

	pending.signedHex, err = s.node.SignRawTransaction(ctx, pending.rawHex)
	if err != nil {
		return s.failPayout(result, fmt.Errorf("%w: %v", ErrSigningFailed, err))
	}
	result.State = PayoutSigned

	pending.txID, err = s.node.SendRawTransaction(ctx, pending.signedHex)
	if err != nil {
		// Леджер не трогаем: в сеть ничего не ушло.
		return s.failPayout(result, fmt.Errorf("%w: %v", ErrBroadcastFailed, err))
	}
	result.State = PayoutBroadcast
	result.TxID = pending.txID
	s.logger.Infof("Broadcast payout tx %s: %s to %s (fee %s) for user %d",
		pending.txID, amount, destination, fee, userID)

	record, err := s.recordChainSend(ctx, userID, amount, fee, destination, pending.txID)
	if err != nil {
		// Транзакция уже в сети и необратима, а в леджере её нет.
		// Молча глотать нельзя - оператор должен увидеть txid.
		s.logger.Errorf("RECONCILIATION REQUIRED: broadcast tx %s for user %d is not recorded: %v",
			pending.txID, userID, err)
		result.State = PayoutFailed
		return result, fmt.Errorf("%w: tx %s: %v", ErrLedgerInconsistency, pending.txID, err)
	}

	result.State = PayoutRecorded
	result.Record = record
	return result, nil
}

func (s *Service) failPayout(result *PayoutResult, err error) (*PayoutResult, error) {
	s.logger.Warnf("Payout failed in state %s: %v", result.State, err)
	result.State = PayoutFailed
	return result, err
}
