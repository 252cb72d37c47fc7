package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Fi44er/btc_pool/internal/models"
	"github.com/shopspring/decimal"
)

// creditUser seeds a confirmed deposit straight into the ledger.
func creditUser(t *testing.T, svc *Service, repo *fakeRepo, userID int64, amount string) {
	t.Helper()
	if _, ok := repo.users[userID]; !ok {
		repo.addUser(userID, "")
	}
	record := &models.LedgerRecord{
		UserID: userID,
		Amount: dec(t, amount),
		Type:   models.RecordChainReceive,
		TxID:   "credit-" + decimal.NewFromInt(userID).String(),
	}
	if err := repo.AppendRecord(context.Background(), record, nil); err != nil {
		t.Fatalf("failed to credit user %d: %v", userID, err)
	}
}

func TestInternalTransfer_MovesBalance(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "2")
	repo.addUser(2, "")

	if _, err := svc.InternalTransfer(ctx, 1, 2, dec(t, "0.75")); err != nil {
		t.Fatalf("InternalTransfer failed: %v", err)
	}

	from, _ := svc.Balance(ctx, 1)
	to, _ := svc.Balance(ctx, 2)
	if !from.Equal(dec(t, "1.25")) {
		t.Errorf("Sender balance: expected 1.25, got %s", from)
	}
	if !to.Equal(dec(t, "0.75")) {
		t.Errorf("Recipient balance: expected 0.75, got %s", to)
	}
}

func TestInternalTransfer_ClosedLedger(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "3")
	creditUser(t, svc, repo, 2, "1")
	repo.addUser(3, "")

	initial := dec(t, "4")

	transfers := []struct {
		from, to int64
		amount   string
	}{
		{1, 2, "0.5"},
		{2, 3, "1.2"},
		{3, 1, "0.3"},
		{1, 3, "2"},
	}
	for _, tr := range transfers {
		if _, err := svc.InternalTransfer(ctx, tr.from, tr.to, dec(t, tr.amount)); err != nil {
			t.Fatalf("Transfer %d->%d of %s failed: %v", tr.from, tr.to, tr.amount, err)
		}

		sum := decimal.Zero
		for _, id := range []int64{1, 2, 3} {
			balance, err := svc.Balance(ctx, id)
			if err != nil {
				t.Fatalf("Balance(%d) failed: %v", id, err)
			}
			sum = sum.Add(balance)
		}
		if !sum.Equal(initial) {
			t.Fatalf("Ledger is not closed after %d->%d: total %s, expected %s", tr.from, tr.to, sum, initial)
		}
	}
}

func TestInternalTransfer_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "1")
	repo.addUser(2, "")

	if _, err := svc.InternalTransfer(ctx, 1, 2, dec(t, "1.00000001")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	// Ровно весь баланс - граница, перевод должен пройти.
	if _, err := svc.InternalTransfer(ctx, 1, 2, dec(t, "1")); err != nil {
		t.Fatalf("Transfer of the exact balance must succeed, got %v", err)
	}

	balance, _ := svc.Balance(ctx, 1)
	if !balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", balance)
	}
}

func TestRecordChainSend_FeeDebitsSenderOnly(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "1")

	if _, err := svc.recordChainSend(ctx, 1, dec(t, "0.5"), dec(t, "0.0001"), "addrX", "tx-send"); err != nil {
		t.Fatalf("recordChainSend failed: %v", err)
	}

	balance, _ := svc.Balance(ctx, 1)
	if !balance.Equal(dec(t, "0.4999")) {
		t.Errorf("Expected balance 0.4999, got %s", balance)
	}
}

func TestRecordChainSend_InsufficientForFee(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "0.5")

	// Сумма есть, но сумма+комиссия уже не покрыта.
	_, err := svc.recordChainSend(ctx, 1, dec(t, "0.5"), dec(t, "0.0001"), "addrX", "tx-send")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestInternalTransfer_ConcurrentDebitsSerialize(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeNode(nil), "0.0001")
	creditUser(t, svc, repo, 1, "1")
	repo.addUser(2, "")

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.InternalTransfer(ctx, 1, 2, dec(t, "0.3"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	// Баланса 1.0 хватает ровно на три перевода по 0.3.
	if succeeded != 3 {
		t.Errorf("Expected exactly 3 transfers to pass, got %d", succeeded)
	}
	balance, _ := svc.Balance(ctx, 1)
	if balance.IsNegative() {
		t.Errorf("Concurrent debits drove balance negative: %s", balance)
	}
}
