package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/easelhq/easel-api/internal/models"
)

func newTestBalanceService() (*BalanceService, *mockCreditTxRepo) {
	repos := newMockRepos()
	return NewBalanceService(repos, slog.Default()), repos.CreditTransaction.(*mockCreditTxRepo)
}

func TestBalanceDebitInsufficient(t *testing.T) {
	svc, txs := newTestBalanceService()
	ctx := context.Background()

	err := svc.Debit(ctx, "user-1", 0.10, "job-1")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(txs.byType(models.TxTypeUsage)) != 0 {
		t.Error("no ledger entry should exist for a rejected debit")
	}
}

func TestBalanceDebitAndRefundConservation(t *testing.T) {
	svc, _ := newTestBalanceService()
	ctx := context.Background()

	if err := svc.AddTopUpCredits(ctx, "user-1", "pi_1", 5.00); err != nil {
		t.Fatal(err)
	}

	if err := svc.Debit(ctx, "user-1", 0.16, "job-1"); err != nil {
		t.Fatal(err)
	}
	b, _ := svc.GetBalance(ctx, "user-1")
	if b.BalanceUSD != 5.00-0.16 {
		t.Errorf("balance after debit = %v", b.BalanceUSD)
	}

	if err := svc.Refund(ctx, "user-1", 0.16, "job-1"); err != nil {
		t.Fatal(err)
	}
	b, _ = svc.GetBalance(ctx, "user-1")
	if b.BalanceUSD != 5.00 {
		t.Errorf("balance after refund = %v, want 5.00", b.BalanceUSD)
	}
	if b.LifetimeSpent != 0.16 || b.LifetimeAdded != 5.16 {
		t.Errorf("lifetime counters wrong: %+v", b)
	}
}

func TestBalanceDuplicateTopUp(t *testing.T) {
	svc, _ := newTestBalanceService()
	ctx := context.Background()

	if err := svc.AddTopUpCredits(ctx, "user-1", "pi_1", 5.00); err != nil {
		t.Fatal(err)
	}
	err := svc.AddTopUpCredits(ctx, "user-1", "pi_1", 5.00)
	if !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}

	b, _ := svc.GetBalance(ctx, "user-1")
	if b.BalanceUSD != 5.00 {
		t.Errorf("replayed webhook must not double-credit: %v", b.BalanceUSD)
	}
}

func TestBalanceZeroDebitNoop(t *testing.T) {
	svc, txs := newTestBalanceService()

	if err := svc.Debit(context.Background(), "user-1", 0, "job-1"); err != nil {
		t.Fatalf("zero debit should succeed: %v", err)
	}
	if len(txs.byType(models.TxTypeUsage)) != 0 {
		t.Error("zero debit must not write a ledger entry")
	}
}

func TestBalanceGetMissingUser(t *testing.T) {
	svc, _ := newTestBalanceService()

	b, err := svc.GetBalance(context.Background(), "never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.BalanceUSD != 0 {
		t.Errorf("expected zero balance, got %+v", b)
	}
}

func TestBalanceLedgerCarriesJobID(t *testing.T) {
	svc, txs := newTestBalanceService()
	ctx := context.Background()

	if err := svc.AddTopUpCredits(ctx, "user-1", "pi_1", 1.00); err != nil {
		t.Fatal(err)
	}
	if err := svc.Debit(ctx, "user-1", 0.10, "job-42"); err != nil {
		t.Fatal(err)
	}

	usage := txs.byType(models.TxTypeUsage)
	if len(usage) != 1 {
		t.Fatalf("expected one usage entry, got %d", len(usage))
	}
	if usage[0].JobID == nil || *usage[0].JobID != "job-42" {
		t.Errorf("usage entry must reference the job: %+v", usage[0])
	}
	if usage[0].AmountUSD != -0.10 {
		t.Errorf("debit amount = %v, want -0.10", usage[0].AmountUSD)
	}
}
