package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

// SQLiteBalanceRepository implements BalanceRepository for SQLite.
type SQLiteBalanceRepository struct {
	db *sql.DB
}

// NewSQLiteBalanceRepository creates a new SQLite balance repository.
func NewSQLiteBalanceRepository(db *sql.DB) *SQLiteBalanceRepository {
	return &SQLiteBalanceRepository{db: db}
}

func (r *SQLiteBalanceRepository) Get(ctx context.Context, userID string) (*models.UserBalance, error) {
	query := `
		SELECT user_id, balance_usd, lifetime_added, lifetime_spent, updated_at
		FROM user_balances WHERE user_id = ?
	`
	var b models.UserBalance
	var updatedAt string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&b.UserID, &b.BalanceUSD, &b.LifetimeAdded, &b.LifetimeSpent, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func (r *SQLiteBalanceRepository) Upsert(ctx context.Context, balance *models.UserBalance) error {
	query := `
		INSERT INTO user_balances (user_id, balance_usd, lifetime_added, lifetime_spent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance_usd = excluded.balance_usd,
			lifetime_added = excluded.lifetime_added,
			lifetime_spent = excluded.lifetime_spent,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		balance.UserID,
		balance.BalanceUSD,
		balance.LifetimeAdded,
		balance.LifetimeSpent,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// SQLiteCreditTransactionRepository implements CreditTransactionRepository for SQLite.
type SQLiteCreditTransactionRepository struct {
	db *sql.DB
}

// NewSQLiteCreditTransactionRepository creates a new SQLite credit transaction repository.
func NewSQLiteCreditTransactionRepository(db *sql.DB) *SQLiteCreditTransactionRepository {
	return &SQLiteCreditTransactionRepository{db: db}
}

const creditTxColumns = `id, user_id, type, amount_usd, balance_after, external_payment_id, job_id, description, created_at`

func (r *SQLiteCreditTransactionRepository) Create(ctx context.Context, tx *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (` + creditTxColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.AmountUSD,
		tx.BalanceAfter,
		nullStringPtr(tx.ExternalPaymentID),
		nullStringPtr(tx.JobID),
		tx.Description,
		tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create credit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteCreditTransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	query := `SELECT ` + creditTxColumns + ` FROM credit_transactions
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.CreditTransaction
	for rows.Next() {
		tx, err := scanCreditTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteCreditTransactionRepository) GetByExternalPaymentID(ctx context.Context, paymentID string) (*models.CreditTransaction, error) {
	query := `SELECT ` + creditTxColumns + ` FROM credit_transactions WHERE external_payment_id = ?`
	row := r.db.QueryRowContext(ctx, query, paymentID)
	return scanCreditTransaction(row.Scan)
}

func scanCreditTransaction(scan func(dest ...any) error) (*models.CreditTransaction, error) {
	var tx models.CreditTransaction
	var externalPaymentID, jobID sql.NullString
	var createdAt string

	err := scan(
		&tx.ID, &tx.UserID, &tx.Type, &tx.AmountUSD, &tx.BalanceAfter,
		&externalPaymentID, &jobID, &tx.Description, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
	}

	if externalPaymentID.Valid {
		tx.ExternalPaymentID = &externalPaymentID.String
	}
	if jobID.Valid {
		tx.JobID = &jobID.String
	}
	tx.CreatedAt = parseTime(createdAt)

	return &tx, nil
}
