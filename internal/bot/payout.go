package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/Fi44er/btc_pool/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// --- Вывод на внешний адрес ---

func (b *Bot) handlePayoutRequest(ctx context.Context, update tgbotapi.Update, user *models.User) {
	balance, err := b.service.Balance(ctx, user.TelegramID)
	if err != nil {
		b.logger.Errorf("Failed to get balance for user %d: %v", user.TelegramID, err)
		b.sendMessage(update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.", GetMainMenu())
		return
	}
	if !balance.IsPositive() {
		b.sendMessage(update.Message.Chat.ID, "❌ На вашем балансе недостаточно средств для вывода.", GetMainMenu())
		return
	}

	msg := fmt.Sprintf(
		"💰 Ваш баланс: `%s` BTC\nКомиссия сети: `%s` BTC\n\nВведите адрес для вывода:",
		balance.StringFixed(8), b.service.DefaultFee().StringFixed(8),
	)
	b.setState(user.TelegramID, stateAwaitingPayoutAddress)
	b.sendMessage(update.Message.Chat.ID, msg, tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handlePayoutAddress(ctx context.Context, chatID int64, user *models.User, text string) {
	address := strings.TrimSpace(text)
	if address == "" {
		b.sendMessage(chatID, "❌ Введите непустой адрес.", tgbotapi.NewRemoveKeyboard(true))
		return
	}

	b.setUserActionData(user.TelegramID, address)
	b.setState(user.TelegramID, stateAwaitingPayoutAmount)
	b.sendMessage(chatID, "Введите сумму вывода в BTC:", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handlePayoutAmount(ctx context.Context, chatID int64, user *models.User, text string) {
	amount, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(text), ",", ".", -1))
	if err != nil || !amount.IsPositive() {
		b.sendMessage(chatID, "❌ Неверная сумма. Введите положительное число.", tgbotapi.NewRemoveKeyboard(true))
		return
	}

	address := b.getUserActionData(user.TelegramID)
	b.clearUserActionData(user.TelegramID)
	b.setState(user.TelegramID, stateDefault)

	result, err := b.service.Payout(ctx, user.TelegramID, address, amount)
	if err != nil {
		b.reportPayoutFailure(chatID, user, result, err)
		return
	}

	msg := fmt.Sprintf(
		"✅ Вывод выполнен.\nСумма: `%s` BTC\nКомиссия: `%s` BTC\nТранзакция: `%s`",
		amount.StringFixed(8), b.service.DefaultFee().StringFixed(8), result.TxID,
	)
	b.sendMessage(chatID, msg, GetMainMenu())
}

func (b *Bot) reportPayoutFailure(chatID int64, user *models.User, result *service.PayoutResult, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		b.sendMessage(chatID, "❌ Недостаточно средств на балансе (сумма + комиссия).", GetMainMenu())
	case errors.Is(err, service.ErrInsufficientFunds):
		b.sendMessage(chatID, "❌ В пуле сейчас недостаточно средств. Попробуйте позже.", GetMainMenu())
	case errors.Is(err, service.ErrNoChangeAddress):
		b.sendMessage(chatID, "❌ У вас нет адреса для сдачи. Получите адрес для пополнения и повторите.", GetMainMenu())
	case errors.Is(err, service.ErrSigningFailed), errors.Is(err, service.ErrBroadcastFailed):
		b.sendMessage(chatID, "❌ Сеть отклонила транзакцию, средства не списаны. Попробуйте ещё раз.", GetMainMenu())
	case errors.Is(err, service.ErrLedgerInconsistency):
		// Транзакция ушла в сеть, но не записана - админ должен
		// разобраться вручную.
		b.sendMessage(chatID, "⚠️ Вывод отправлен, но возникла ошибка учёта. Администратор уведомлён.", GetMainMenu())
		alert := fmt.Sprintf("⚠️ RECONCILIATION: user %d, tx `%s`: %v", user.TelegramID, result.TxID, err)
		b.sendMessage(b.config.AdminChatID, alert, nil)
	default:
		b.logger.Errorf("Payout for user %d failed: %v", user.TelegramID, err)
		b.sendMessage(chatID, "❌ Вывод не выполнен. Попробуйте позже.", GetMainMenu())
	}
}
