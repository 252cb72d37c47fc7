package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы записей в леджере
const (
	RecordInternalTransfer = "internal_transfer"
	RecordChainSend        = "chain_send"
	RecordChainReceive     = "chain_receive"
)

type User struct {
	TelegramID int64  `gorm:"primaryKey" json:"telegram_id"`
	Name       string `json:"name"`

	Addresses []Address      `gorm:"foreignKey:UserID" json:"addresses"`
	Records   []LedgerRecord `gorm:"foreignKey:UserID" json:"records"`
}

// Address - адрес пула. UserID == nil означает служебный адрес
// (только для сдачи), не привязанный к пользователю.
type Address struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Address string `gorm:"unique" json:"address"`
	UserID  *int64 `gorm:"index" json:"user_id"`
}

// LedgerRecord is a single append-only ledger row. Amount is signed:
// debits negative, credits positive. An internal transfer is stored once
// on the sender side; the counterparty reads it with the sign flipped.
// Fee applies to the owning user only.
type LedgerRecord struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	UserID              int64           `gorm:"index" json:"user_id"`
	Amount              decimal.Decimal `gorm:"type:numeric(20,8)" json:"amount"`
	Fee                 decimal.Decimal `gorm:"type:numeric(20,8)" json:"fee"`
	Type                string          `gorm:"index" json:"type"`
	CounterpartyID      *int64          `gorm:"index" json:"counterparty_id"`
	CounterpartyAddress string          `json:"counterparty_address"`
	TxID                string          `gorm:"index" json:"tx_id"`
	CreatedAt           time.Time       `json:"created_at"`
}

// UnspentOutput is a pool UTXO as reported by the node. Never persisted,
// always fetched fresh before selection.
type UnspentOutput struct {
	TxID          string
	Vout          uint32
	Address       string
	Amount        decimal.Decimal
	Spendable     bool
	Confirmations int64
}

// DecodedTransaction - результат decoderawtransaction, достаточный для
// проверки выходов перед подписанием.
type DecodedTransaction struct {
	TxID    string
	Outputs []DecodedOutput
}

type DecodedOutput struct {
	Address string
	Amount  decimal.Decimal
	Index   uint32
}
