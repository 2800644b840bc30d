package handlers

import (
	"context"
	"log/slog"

	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/service"
)

// BalanceHandler serves credit balances and transaction history.
type BalanceHandler struct {
	svc    *service.BalanceService
	logger *slog.Logger
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(svc *service.BalanceService, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{svc: svc, logger: logger}
}

// GetBalanceOutput wraps a user balance.
type GetBalanceOutput struct {
	Body struct {
		BalanceUSD    float64 `json:"balance_usd"`
		LifetimeAdded float64 `json:"lifetime_added"`
		LifetimeSpent float64 `json:"lifetime_spent"`
		Unlimited     bool    `json:"unlimited"`
	}
}

// GetBalance returns the caller's credit balance.
func (h *BalanceHandler) GetBalance(ctx context.Context, input *struct{}) (*GetBalanceOutput, error) {
	claims := getUserClaims(ctx)
	balance, err := h.svc.GetBalance(ctx, claims.UserID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &GetBalanceOutput{}
	out.Body.BalanceUSD = balance.BalanceUSD
	out.Body.LifetimeAdded = balance.LifetimeAdded
	out.Body.LifetimeSpent = balance.LifetimeSpent
	out.Body.Unlimited = claims.Unlimited
	return out, nil
}

// ListTransactionsInput carries pagination.
type ListTransactionsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" required:"false"`
	Offset int `query:"offset" minimum:"0" required:"false"`
}

// ListTransactionsOutput wraps a page of ledger entries.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []*models.CreditTransaction `json:"transactions"`
	}
}

// ListTransactions returns the caller's credit ledger, newest first.
func (h *BalanceHandler) ListTransactions(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	limit, offset := pageBounds(input.Limit, input.Offset)
	txs, err := h.svc.GetTransactionHistory(ctx, getUserID(ctx), limit, offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if txs == nil {
		txs = []*models.CreditTransaction{}
	}
	out := &ListTransactionsOutput{}
	out.Body.Transactions = txs
	return out, nil
}
