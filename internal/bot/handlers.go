package bot

import (
	"context"
	"fmt"

	"github.com/Fi44er/btc_pool/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	userID := update.Message.From.ID
	text := update.Message.Text

	if state := b.getUserState(userID); state != stateDefault {
		b.withUserCheck(func(ctx context.Context, update tgbotapi.Update, user *models.User) {
			b.handleStatefulInput(ctx, update, user, state, text)
		})(update)
		return
	}

	switch text {
	case "/start":
		b.withUserCheck(b.handleStart)(update)
	case "💰 Баланс", "/balance":
		b.withUserCheck(b.handleBalance)(update)
	case "📥 Адрес для пополнения", "/address":
		b.withUserCheck(b.handleDepositAddress)(update)
	case "🔁 Перевод пользователю", "/transfer":
		b.withUserCheck(b.handleTransferRequest)(update)
	case "📤 Вывод на адрес", "/withdraw":
		b.withUserCheck(b.handlePayoutRequest)(update)
	case "🔄 Проверить поступления", "/deposits":
		b.withUserCheck(b.handleCheckDeposits)(update)
	default:
		b.sendMessage(update.Message.Chat.ID, "Неизвестная команда. Используйте меню.", GetMainMenu())
	}
}

func (b *Bot) handleStatefulInput(ctx context.Context, update tgbotapi.Update, user *models.User, state, text string) {
	switch state {
	case stateAwaitingTransferTarget:
		b.handleTransferTarget(ctx, update.Message.Chat.ID, user, text)
	case stateAwaitingTransferAmount:
		b.handleTransferAmount(ctx, update.Message.Chat.ID, user, text)
	case stateAwaitingPayoutAddress:
		b.handlePayoutAddress(ctx, update.Message.Chat.ID, user, text)
	case stateAwaitingPayoutAmount:
		b.handlePayoutAmount(ctx, update.Message.Chat.ID, user, text)
	default:
		b.setState(user.TelegramID, stateDefault)
		b.sendMessage(update.Message.Chat.ID, "Действие отменено.", GetMainMenu())
	}
}

func (b *Bot) handleStart(ctx context.Context, update tgbotapi.Update, user *models.User) {
	msg := "👋 Добро пожаловать! Это кастодиальный кошелёк: баланс ведётся " +
		"внутри сервиса, вывод идёт из общего пула."
	b.sendMessage(update.Message.Chat.ID, msg, GetMainMenu())
}

func (b *Bot) handleBalance(ctx context.Context, update tgbotapi.Update, user *models.User) {
	balance, err := b.service.Balance(ctx, user.TelegramID)
	if err != nil {
		b.logger.Errorf("Failed to get balance for user %d: %v", user.TelegramID, err)
		b.sendMessage(update.Message.Chat.ID, "❌ Не удалось получить баланс. Попробуйте позже.", GetMainMenu())
		return
	}

	msg := fmt.Sprintf("💰 Ваш баланс: `%s` BTC", balance.StringFixed(8))
	b.sendMessage(update.Message.Chat.ID, msg, GetMainMenu())
}

func (b *Bot) handleDepositAddress(ctx context.Context, update tgbotapi.Update, user *models.User) {
	address, err := b.service.EnsureAddress(ctx, user.TelegramID)
	if err != nil {
		b.logger.Errorf("Failed to ensure address for user %d: %v", user.TelegramID, err)
		b.sendMessage(update.Message.Chat.ID, "❌ Не удалось получить адрес. Попробуйте позже.", GetMainMenu())
		return
	}

	msg := fmt.Sprintf("📥 Ваш адрес для пополнения:\n`%s`", address.Address)
	b.sendMessage(update.Message.Chat.ID, msg, GetMainMenu())
}

func (b *Bot) handleCheckDeposits(ctx context.Context, update tgbotapi.Update, user *models.User) {
	credited, err := b.service.CheckDeposits(ctx)
	if err != nil {
		b.logger.Errorf("Deposit check failed: %v", err)
		b.sendMessage(update.Message.Chat.ID, "❌ Проверка поступлений не удалась. Попробуйте позже.", GetMainMenu())
		return
	}

	if credited.IsZero() {
		b.sendMessage(update.Message.Chat.ID, "Новых поступлений нет.", GetMainMenu())
		return
	}

	balance, err := b.service.Balance(ctx, user.TelegramID)
	if err != nil {
		b.logger.Errorf("Failed to get balance for user %d: %v", user.TelegramID, err)
		b.sendMessage(update.Message.Chat.ID, "✅ Поступления зачислены.", GetMainMenu())
		return
	}

	msg := fmt.Sprintf("✅ Поступления зачислены.\n💰 Ваш баланс: `%s` BTC", balance.StringFixed(8))
	b.sendMessage(update.Message.Chat.ID, msg, GetMainMenu())
}
