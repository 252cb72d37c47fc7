package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/btc_pool/config"
	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/Fi44er/btc_pool/utils"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeRepo struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	addresses  []models.Address
	records    []models.LedgerRecord
	nextAddrID uint
	nextRecID  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]*models.User)}
}

func (r *fakeRepo) addUser(id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &models.User{TelegramID: id, Name: name}
}

func (r *fakeRepo) addAddress(addr string, userID *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAddrID++
	r.addresses = append(r.addresses, models.Address{ID: r.nextAddrID, Address: addr, UserID: userID})
}

func (r *fakeRepo) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[telegramID]
	if !ok {
		return nil, nil
	}
	copied := *user
	for _, addr := range r.addresses {
		if addr.UserID != nil && *addr.UserID == telegramID {
			copied.Addresses = append(copied.Addresses, addr)
		}
	}
	return &copied, nil
}

func (r *fakeRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.TelegramID]; ok {
		return errors.New("duplicate user")
	}
	r.users[user.TelegramID] = user
	return nil
}

func (r *fakeRepo) CreateAddress(ctx context.Context, address *models.Address, tx *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAddrID++
	address.ID = r.nextAddrID
	r.addresses = append(r.addresses, *address)
	return nil
}

func (r *fakeRepo) GetUserAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Address
	for _, addr := range r.addresses {
		if addr.UserID != nil && *addr.UserID == userID {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetOwnedAddresses(ctx context.Context) ([]models.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Address
	for _, addr := range r.addresses {
		if addr.UserID != nil {
			out = append(out, addr)
		}
	}
	return out, nil
}

func (r *fakeRepo) CountAddresses(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.addresses)), nil
}

func (r *fakeRepo) AppendRecord(ctx context.Context, record *models.LedgerRecord, tx *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRecID++
	record.ID = r.nextRecID
	record.CreatedAt = time.Now()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeRepo) GetRecordsByUser(ctx context.Context, userID int64) ([]models.LedgerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LedgerRecord
	for _, rec := range r.records {
		if rec.UserID == userID || (rec.CounterpartyID != nil && *rec.CounterpartyID == userID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetRecordByTx(ctx context.Context, txID string, address string) (*models.LedgerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].TxID == txID && r.records[i].CounterpartyAddress == address {
			copied := r.records[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetSendRecordByTxID(ctx context.Context, txID string) (*models.LedgerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].TxID == txID && r.records[i].Type == models.RecordChainSend {
			copied := r.records[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) BeginTransaction(ctx context.Context) (*gorm.DB, error) { return nil, nil }
func (r *fakeRepo) Commit(tx *gorm.DB) error                               { return nil }
func (r *fakeRepo) Rollback(tx *gorm.DB)                                   {}

type builtTx struct {
	inputs  []models.UnspentOutput
	outputs map[string]decimal.Decimal
}

// fakeNode simulates the node's five RPC operations, including
// double-spend rejection at broadcast time. Outputs paying watched
// addresses reappear in the unspent set, like change does on a real
// wallet.
type fakeNode struct {
	mu      sync.Mutex
	unspent []models.UnspentOutput
	built   map[string]builtTx
	spent   map[string]bool
	watched map[string]bool
	nextTx  int

	failSign      bool
	failBroadcast bool
	broadcasts    int

	// onBroadcast, if set, runs right before a broadcast is accepted.
	onBroadcast func()
}

func newFakeNode(unspent []models.UnspentOutput) *fakeNode {
	return &fakeNode{
		unspent: unspent,
		built:   make(map[string]builtTx),
		spent:   make(map[string]bool),
		watched: make(map[string]bool),
	}
}

func (n *fakeNode) watchAddress(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watched[addr] = true
}

func outpoint(txID string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txID, vout)
}

func (n *fakeNode) ListUnspent(ctx context.Context) ([]models.UnspentOutput, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.UnspentOutput, len(n.unspent))
	copy(out, n.unspent)
	return out, nil
}

func (n *fakeNode) CreateRawTransaction(ctx context.Context, inputs []models.UnspentOutput, outputs map[string]decimal.Decimal) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextTx++
	rawHex := fmt.Sprintf("raw%04d", n.nextTx)
	copied := make([]models.UnspentOutput, len(inputs))
	copy(copied, inputs)
	n.built[rawHex] = builtTx{inputs: copied, outputs: outputs}
	return rawHex, nil
}

func (n *fakeNode) DecodeRawTransaction(ctx context.Context, rawHex string) (*models.DecodedTransaction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx, ok := n.built[rawHex]
	if !ok {
		return nil, fmt.Errorf("unknown raw transaction %s", rawHex)
	}
	decoded := &models.DecodedTransaction{TxID: rawHex}
	var index uint32
	for addr, amount := range tx.outputs {
		decoded.Outputs = append(decoded.Outputs, models.DecodedOutput{
			Address: addr,
			Amount:  amount,
			Index:   index,
		})
		index++
	}
	return decoded, nil
}

func (n *fakeNode) SignRawTransaction(ctx context.Context, rawHex string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failSign {
		return "", errors.New("missing keys")
	}
	if _, ok := n.built[rawHex]; !ok {
		return "", fmt.Errorf("unknown raw transaction %s", rawHex)
	}
	return "signed:" + rawHex, nil
}

func (n *fakeNode) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	if n.onBroadcast != nil {
		n.onBroadcast()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts++
	if n.failBroadcast {
		return "", errors.New("node rejected transaction")
	}

	rawHex := signedHex[len("signed:"):]
	tx, ok := n.built[rawHex]
	if !ok {
		return "", fmt.Errorf("unknown signed transaction %s", signedHex)
	}

	for _, in := range tx.inputs {
		if n.spent[outpoint(in.TxID, in.Vout)] {
			return "", fmt.Errorf("double spend of %s", outpoint(in.TxID, in.Vout))
		}
	}

	for _, in := range tx.inputs {
		n.spent[outpoint(in.TxID, in.Vout)] = true
		for i := range n.unspent {
			if n.unspent[i].TxID == in.TxID && n.unspent[i].Vout == in.Vout {
				n.unspent = append(n.unspent[:i], n.unspent[i+1:]...)
				break
			}
		}
	}

	n.nextTx++
	txID := fmt.Sprintf("txid%04d", n.nextTx)

	var vout uint32
	for addr, amount := range tx.outputs {
		if n.watched[addr] {
			n.unspent = append(n.unspent, models.UnspentOutput{
				TxID:          txID,
				Vout:          vout,
				Address:       addr,
				Amount:        amount,
				Spendable:     true,
				Confirmations: 1,
			})
		}
		vout++
	}

	return txID, nil
}

func testMasterKey(t *testing.T) string {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	key, err := hdkeychain.NewMaster(seed, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("failed to build master key: %v", err)
	}
	return key.String()
}

func newTestService(t *testing.T, repo *fakeRepo, node NodeClient, fee string) *Service {
	t.Helper()
	cfg := &config.Config{
		MasterKeySeed: testMasterKey(t),
		DefaultFee:    fee,
		AdminChatID:   1,
	}
	svc, err := NewService(repo, node, cfg, utils.InitLogger())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", value, err)
	}
	return d
}

func utxo(txID string, vout uint32, address, amount string, confirmations int64) models.UnspentOutput {
	d, _ := decimal.NewFromString(amount)
	return models.UnspentOutput{
		TxID:          txID,
		Vout:          vout,
		Address:       address,
		Amount:        d,
		Spendable:     true,
		Confirmations: confirmations,
	}
}
