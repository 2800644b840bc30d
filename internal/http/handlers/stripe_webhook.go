package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/easelhq/easel-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	webhookSecret string
	balanceSvc    *service.BalanceService
	logger        *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(webhookSecret string, balanceSvc *service.BalanceService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		balanceSvc:    balanceSvc,
		logger:        logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks. This is a raw HTTP
// handler since signature verification needs the untouched body.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// Always 200 once the signature checks out; failures are handled
	// internally so Stripe doesn't retry forever
	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)

	case "charge.refunded":
		return h.handleChargeRefunded(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete credits a completed top-up purchase.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	userID, ok := session.Metadata["user_id"]
	if !ok || userID == "" {
		h.logger.Warn("checkout session missing user_id", "session_id", session.ID)
		return nil // Not a top-up checkout
	}

	if session.PaymentIntent == nil {
		h.logger.Warn("checkout session missing payment intent", "session_id", session.ID)
		return nil
	}

	amountUSD := float64(session.AmountTotal) / 100.0
	if err := h.balanceSvc.AddTopUpCredits(ctx, userID, session.PaymentIntent.ID, amountUSD); err != nil {
		if errors.Is(err, service.ErrDuplicatePayment) {
			h.logger.Info("duplicate checkout payment ignored", "payment_id", session.PaymentIntent.ID)
			return nil
		}
		return fmt.Errorf("failed to add top-up credits: %w", err)
	}

	h.logger.Info("added top-up credits",
		"user_id", userID,
		"amount_usd", amountUSD,
		"payment_id", session.PaymentIntent.ID,
	)

	return nil
}

// handleChargeRefunded logs Stripe-side refunds. Credits already spent on
// generations are not clawed back.
func (h *StripeWebhookHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	userID := ""
	if charge.Metadata != nil {
		userID = charge.Metadata["user_id"]
	}

	h.logger.Info("stripe charge refunded",
		"user_id", userID,
		"charge_id", charge.ID,
		"refund_amount_usd", float64(charge.AmountRefunded)/100.0,
	)
	return nil
}
