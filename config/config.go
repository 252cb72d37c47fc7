package config

import (
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`
	MasterKeySeed    string `mapstructure:"MASTER_KEY_SEED"`
	DB_URL           string `mapstructure:"DB_URL"`

	NodeRPCHost string `mapstructure:"NODE_RPC_HOST"`
	NodeRPCUser string `mapstructure:"NODE_RPC_USER"`
	NodeRPCPass string `mapstructure:"NODE_RPC_PASS"`

	// Фиксированная комиссия сети, десятичная строка (например "0.0001")
	DefaultFee string `mapstructure:"DEFAULT_FEE"`
	// Автоматически создавать адрес для нового пользователя
	AutoCreateAddress bool `mapstructure:"AUTO_CREATE_ADDRESS"`
}

func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("ошибка получения абсолютного пути: %w", err)
	}

	viper.AddConfigPath(filepath.Dir(absPath))
	viper.SetConfigName(filepath.Base(absPath))
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("DEFAULT_FEE", "0.0001")
	viper.SetDefault("AUTO_CREATE_ADDRESS", true)

	if err := viper.ReadInConfig(); err != nil {
		return config, fmt.Errorf("ошибка чтения конфигурации: %w", err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("ошибка преобразования конфига: %w", err)
	}

	return config, nil
}

// Fee parses DefaultFee. A bad value is a deployment error, not something
// to paper over at payout time.
func (c *Config) Fee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.DefaultFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid DEFAULT_FEE %q: %w", c.DefaultFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("DEFAULT_FEE must not be negative: %s", c.DefaultFee)
	}
	return fee, nil
}
