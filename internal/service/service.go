package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Fi44er/btc_pool/config"
	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/Fi44er/btc_pool/utils"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	repo       Repository
	node       NodeClient
	config     *config.Config
	logger     *utils.Logger
	masterKey  *hdkeychain.ExtendedKey
	netParams  *chaincfg.Params
	addressIdx uint32
	defaultFee decimal.Decimal

	// Сериализует интервал listunspent -> sign -> broadcast: одновременно
	// не больше одного построения транзакции на пул, иначе два вывода
	// выберут одни и те же UTXO.
	poolMu sync.Mutex

	locksMu   sync.Mutex
	userLocks map[int64]*sync.Mutex
}

type Repository interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	CreateAddress(ctx context.Context, address *models.Address, tx *gorm.DB) error
	GetUserAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	GetOwnedAddresses(ctx context.Context) ([]models.Address, error)
	CountAddresses(ctx context.Context) (int64, error)

	AppendRecord(ctx context.Context, record *models.LedgerRecord, tx *gorm.DB) error
	GetRecordsByUser(ctx context.Context, userID int64) ([]models.LedgerRecord, error)
	GetRecordByTx(ctx context.Context, txID string, address string) (*models.LedgerRecord, error)
	GetSendRecordByTxID(ctx context.Context, txID string) (*models.LedgerRecord, error)

	BeginTransaction(ctx context.Context) (*gorm.DB, error)
	Commit(tx *gorm.DB) error
	Rollback(tx *gorm.DB)
}

// NodeClient is the node capability set the engine consumes. Hex in, hex
// out; the rpc adapter in internal/node hides btcd wire types.
type NodeClient interface {
	ListUnspent(ctx context.Context) ([]models.UnspentOutput, error)
	CreateRawTransaction(ctx context.Context, inputs []models.UnspentOutput, outputs map[string]decimal.Decimal) (string, error)
	DecodeRawTransaction(ctx context.Context, rawHex string) (*models.DecodedTransaction, error)
	SignRawTransaction(ctx context.Context, rawHex string) (string, error)
	SendRawTransaction(ctx context.Context, signedHex string) (string, error)
}

func NewService(repo Repository, node NodeClient, cfg *config.Config, logger *utils.Logger) (*Service, error) {
	masterKey, err := hdkeychain.NewKeyFromString(cfg.MasterKeySeed)
	if err != nil {
		return nil, err
	}

	fee, err := cfg.Fee()
	if err != nil {
		return nil, err
	}

	count, err := repo.CountAddresses(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to count derived addresses: %w", err)
	}

	return &Service{
		repo:       repo,
		node:       node,
		config:     cfg,
		logger:     logger,
		masterKey:  masterKey,
		netParams:  &chaincfg.TestNet3Params,
		addressIdx: uint32(count),
		defaultFee: fee,
		userLocks:  make(map[int64]*sync.Mutex),
	}, nil
}

func (s *Service) GetAdminChatID() int64 {
	return s.config.AdminChatID
}

func (s *Service) DefaultFee() decimal.Decimal {
	return s.defaultFee
}

func (s *Service) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, telegramID)
}

func (s *Service) CreateUser(ctx context.Context, telegramID int64, name string) (*models.User, error) {
	user := &models.User{
		TelegramID: telegramID,
		Name:       name,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if s.config.AutoCreateAddress {
		if _, err := s.EnsureAddress(ctx, telegramID); err != nil {
			s.logger.Errorf("Failed to create address for new user %d: %v", telegramID, err)
			return nil, err
		}
	}

	return s.repo.GetUser(ctx, telegramID)
}

// EnsureAddress выдаёт пользователю адрес, если у него ещё нет ни одного.
// Адрес нужен как минимум для сдачи при выводе.
func (s *Service) EnsureAddress(ctx context.Context, telegramID int64) (*models.Address, error) {
	user, err := s.repo.GetUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	if len(user.Addresses) > 0 {
		return &user.Addresses[0], nil
	}

	encoded, err := s.generateNewAddress()
	if err != nil {
		return nil, err
	}

	address := &models.Address{
		Address: encoded,
		UserID:  &user.TelegramID,
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic occurred: %v", r)
			s.repo.Rollback(tx)
		}
	}()

	if err := s.repo.CreateAddress(ctx, address, tx); err != nil {
		s.logger.Errorf("Failed to create address: %v", err)
		s.repo.Rollback(tx)
		return nil, err
	}

	if err := s.repo.Commit(tx); err != nil {
		return nil, err
	}

	s.logger.Infof("Created address %s for user %d", address.Address, telegramID)
	return address, nil
}

func (s *Service) generateNewAddress() (string, error) {
	child, err := s.masterKey.Derive(s.addressIdx)
	if err != nil {
		return "", err
	}

	addr, err := child.Address(s.netParams)
	if err != nil {
		return "", err
	}

	s.addressIdx++
	return addr.EncodeAddress(), nil
}

// userLock возвращает мьютекс пользователя. Проверка баланса и запись в
// леджер должны быть атомарны на пользователя, иначе два конкурентных
// списания пройдут по одному и тому же устаревшему балансу.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userLocks[userID] = mu
	}
	return mu
}
