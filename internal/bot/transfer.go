package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/Fi44er/btc_pool/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// --- Внутренний перевод между пользователями ---

func (b *Bot) handleTransferRequest(ctx context.Context, update tgbotapi.Update, user *models.User) {
	balance, err := b.service.Balance(ctx, user.TelegramID)
	if err != nil {
		b.logger.Errorf("Failed to get balance for user %d: %v", user.TelegramID, err)
		b.sendMessage(update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.", GetMainMenu())
		return
	}
	if !balance.IsPositive() {
		b.sendMessage(update.Message.Chat.ID, "❌ На вашем балансе недостаточно средств для перевода.", GetMainMenu())
		return
	}

	b.setState(user.TelegramID, stateAwaitingTransferTarget)
	b.sendMessage(update.Message.Chat.ID, "Введите Telegram ID получателя:", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handleTransferTarget(ctx context.Context, chatID int64, user *models.User, text string) {
	targetID, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || targetID == user.TelegramID {
		b.sendMessage(chatID, "❌ Неверный ID получателя. Введите число.", tgbotapi.NewRemoveKeyboard(true))
		return
	}

	target, err := b.service.GetUser(ctx, targetID)
	if err != nil {
		b.logger.Errorf("Failed to get transfer target %d: %v", targetID, err)
		b.sendMessage(chatID, "❌ Произошла ошибка. Попробуйте позже.", GetMainMenu())
		b.setState(user.TelegramID, stateDefault)
		return
	}
	if target == nil {
		b.sendMessage(chatID, "❌ Получатель не найден.", GetMainMenu())
		b.setState(user.TelegramID, stateDefault)
		return
	}

	b.setUserActionData(user.TelegramID, text)
	b.setState(user.TelegramID, stateAwaitingTransferAmount)
	b.sendMessage(chatID, "Введите сумму перевода в BTC:", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handleTransferAmount(ctx context.Context, chatID int64, user *models.User, text string) {
	amount, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(text), ",", ".", -1))
	if err != nil || !amount.IsPositive() {
		b.sendMessage(chatID, "❌ Неверная сумма. Введите положительное число.", tgbotapi.NewRemoveKeyboard(true))
		return
	}

	targetID, err := strconv.ParseInt(b.getUserActionData(user.TelegramID), 10, 64)
	b.clearUserActionData(user.TelegramID)
	b.setState(user.TelegramID, stateDefault)
	if err != nil {
		b.sendMessage(chatID, "❌ Ошибка обработки получателя.", GetMainMenu())
		return
	}

	record, err := b.service.InternalTransfer(ctx, user.TelegramID, targetID, amount)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientBalance) {
			b.sendMessage(chatID, "❌ Недостаточно средств на балансе.", GetMainMenu())
			return
		}
		b.logger.Errorf("Transfer from %d to %d failed: %v", user.TelegramID, targetID, err)
		b.sendMessage(chatID, "❌ Перевод не выполнен. Попробуйте позже.", GetMainMenu())
		return
	}

	msg := fmt.Sprintf("✅ Переведено `%s` BTC пользователю `%d`.", amount.StringFixed(8), targetID)
	b.sendMessage(chatID, msg, GetMainMenu())
	b.logger.Infof("Transfer record #%d created for user %d", record.ID, user.TelegramID)
}
