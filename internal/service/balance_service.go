package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/repository"
)

var (
	// ErrInsufficientBalance indicates the user doesn't have enough balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicatePayment indicates a duplicate Stripe payment ID.
	ErrDuplicatePayment = errors.New("duplicate payment - already processed")
)

// BalanceService handles user balance and credit operations.
type BalanceService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewBalanceService creates a new balance service.
func NewBalanceService(repos *repository.Repositories, logger *slog.Logger) *BalanceService {
	return &BalanceService{
		repos:  repos,
		logger: logger,
	}
}

// GetBalance retrieves a user's current balance. Users with no balance row
// yet get a zero-value balance.
func (s *BalanceService) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	balance, err := s.repos.Balance.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == nil {
		balance = &models.UserBalance{UserID: userID}
	}
	return balance, nil
}

// CheckBalance verifies if a user has sufficient balance for an operation.
func (s *BalanceService) CheckBalance(ctx context.Context, userID string, requiredUSD float64) error {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.BalanceUSD < requiredUSD {
		return ErrInsufficientBalance
	}
	return nil
}

// AddTopUpCredits adds credits from a Stripe payment.
// The payment ID provides idempotency: replayed webhooks are rejected with
// ErrDuplicatePayment.
func (s *BalanceService) AddTopUpCredits(ctx context.Context, userID, stripePaymentID string, amountUSD float64) error {
	return s.addCredits(ctx, userID, models.TxTypeTopUp, amountUSD, &stripePaymentID, nil,
		fmt.Sprintf("Top-up purchase - $%.2f", amountUSD))
}

// Debit checks the balance and deducts the cost of a generation in one call.
func (s *BalanceService) Debit(ctx context.Context, userID string, amountUSD float64, jobID string) error {
	if amountUSD <= 0 {
		return nil // Nothing to deduct
	}

	if err := s.CheckBalance(ctx, userID, amountUSD); err != nil {
		return err
	}

	return s.addCredits(ctx, userID, models.TxTypeUsage, -amountUSD, nil, &jobID,
		fmt.Sprintf("Generation - $%.2f", amountUSD))
}

// Refund returns a job's debit after a failed generation.
func (s *BalanceService) Refund(ctx context.Context, userID string, amountUSD float64, jobID string) error {
	if amountUSD <= 0 {
		return nil
	}

	return s.addCredits(ctx, userID, models.TxTypeRefund, amountUSD, nil, &jobID,
		fmt.Sprintf("Refund for failed generation - $%.2f", amountUSD))
}

// AddAdjustment adds a manual correction to a user's balance.
func (s *BalanceService) AddAdjustment(ctx context.Context, userID string, amountUSD float64, description string) error {
	return s.addCredits(ctx, userID, models.TxTypeAdjustment, amountUSD, nil, nil, description)
}

// GetTransactionHistory retrieves a user's credit transaction history.
func (s *BalanceService) GetTransactionHistory(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	return s.repos.CreditTransaction.GetByUserID(ctx, userID, limit, offset)
}

// addCredits is the internal method for adding/deducting credits.
func (s *BalanceService) addCredits(ctx context.Context, userID, txType string,
	amountUSD float64, externalPaymentID, jobID *string, description string) error {

	balance, err := s.repos.Balance.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == nil {
		balance = &models.UserBalance{
			UserID:    userID,
			UpdatedAt: time.Now(),
		}
	}

	newBalance := balance.BalanceUSD + amountUSD

	tx := &models.CreditTransaction{
		ID:                ulid.Make().String(),
		UserID:            userID,
		Type:              txType,
		AmountUSD:         amountUSD,
		BalanceAfter:      newBalance,
		ExternalPaymentID: externalPaymentID,
		JobID:             jobID,
		Description:       description,
		CreatedAt:         time.Now(),
	}

	// Ledger insert fails on a duplicate external payment ID
	if err := s.repos.CreditTransaction.Create(ctx, tx); err != nil {
		if isDuplicateKeyError(err) {
			s.logger.Info("duplicate payment ignored", "external_payment_id", externalPaymentID)
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to create credit transaction: %w", err)
	}

	if amountUSD > 0 {
		balance.LifetimeAdded += amountUSD
	} else {
		balance.LifetimeSpent -= amountUSD // Make positive since amount is negative
	}
	balance.BalanceUSD = newBalance
	balance.UpdatedAt = time.Now()

	if err := s.repos.Balance.Upsert(ctx, balance); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	s.logger.Info("credit transaction recorded",
		"user_id", userID,
		"type", txType,
		"amount_usd", amountUSD,
		"balance_after", newBalance,
	)

	return nil
}

// isDuplicateKeyError checks if an error is a duplicate key constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "already exists")
}
