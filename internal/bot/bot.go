package bot

import (
	"sync"

	"github.com/Fi44er/btc_pool/config"
	"github.com/Fi44er/btc_pool/internal/service"
	"github.com/Fi44er/btc_pool/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	API     *tgbotapi.BotAPI
	service *service.Service
	logger  *utils.Logger
	config  *config.Config

	stateMutex     *sync.Mutex
	userStates     map[int64]string
	userActionData map[int64]string
}

func NewBot(
	api *tgbotapi.BotAPI,
	svc *service.Service,
	logger *utils.Logger,
	cfg *config.Config,
) *Bot {
	return &Bot{
		API:            api,
		service:        svc,
		logger:         logger,
		config:         cfg,
		stateMutex:     &sync.Mutex{},
		userStates:     make(map[int64]string),
		userActionData: make(map[int64]string),
	}
}

func (b *Bot) Start() {
	b.logger.Info("Starting bot...")
	updates := b.API.GetUpdatesChan(tgbotapi.NewUpdate(0))
	for update := range updates {
		if update.Message != nil {
			b.HandleUpdate(update)
		}
	}
}

func GetMainMenu() tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		{
			tgbotapi.NewKeyboardButton("💰 Баланс"),
			tgbotapi.NewKeyboardButton("📥 Адрес для пополнения"),
		},
		{
			tgbotapi.NewKeyboardButton("🔁 Перевод пользователю"),
			tgbotapi.NewKeyboardButton("📤 Вывод на адрес"),
		},
		{
			tgbotapi.NewKeyboardButton("🔄 Проверить поступления"),
		},
	}

	return tgbotapi.NewReplyKeyboard(rows...)
}
