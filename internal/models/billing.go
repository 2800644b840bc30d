package models

import "time"

// UserBalance tracks a user's prepaid credit balance in USD.
type UserBalance struct {
	UserID        string    `json:"user_id"`
	BalanceUSD    float64   `json:"balance_usd"`
	LifetimeAdded float64   `json:"lifetime_added"`
	LifetimeSpent float64   `json:"lifetime_spent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction types for the credit ledger.
const (
	TxTypeTopUp      = "topup"      // Stripe payment added credits
	TxTypeUsage      = "usage"      // generation job debited credits
	TxTypeRefund     = "refund"     // failed job refunded its debit
	TxTypeAdjustment = "adjustment" // manual correction
)

// CreditTransaction is one entry in the append-only credit ledger.
// AmountUSD is positive for credits and negative for debits.
type CreditTransaction struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Type              string    `json:"type"`
	AmountUSD         float64   `json:"amount_usd"`
	BalanceAfter      float64   `json:"balance_after"`
	ExternalPaymentID *string   `json:"external_payment_id,omitempty"` // Stripe payment intent, unique for idempotency
	JobID             *string   `json:"job_id,omitempty"`              // generation job for usage/refund entries
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
}
