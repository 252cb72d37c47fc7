package main

import (
	"github.com/Fi44er/btc_pool/config"
	"github.com/Fi44er/btc_pool/db"
	"github.com/Fi44er/btc_pool/internal/bot"
	"github.com/Fi44er/btc_pool/internal/node"
	"github.com/Fi44er/btc_pool/internal/repository"
	"github.com/Fi44er/btc_pool/internal/service"
	"github.com/Fi44er/btc_pool/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	logger := utils.InitLogger()
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.Fatal("Failed to load config: ", err)
	}

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := db.Migrate(database, true, logger); err != nil {
		logger.Fatal(err)
	}

	nodeClient, err := node.NewClient(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create node client: ", err)
	}
	defer nodeClient.Shutdown()

	repo := repository.NewRepository(database, logger)
	poolService, err := service.NewService(repo, nodeClient, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create pool service: ", err)
	}

	telegramBot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal("Failed to create bot API: ", err)
	}

	poolBot := bot.NewBot(telegramBot, poolService, logger, &cfg)
	poolBot.Start()
}
