package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/logger"
	"storhub-backend/internal/service"
)

const maxWebhookBodyBytes = 65536

// WebhookHandler receives payment gateway events. Escalated overstays are
// resolved here when the renter completes the self-serve checkout session.
type WebhookHandler struct {
	overstays     service.OverstayService
	webhookSecret string
}

func NewWebhookHandler(overstays service.OverstayService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		overstays:     overstays,
		webhookSecret: webhookSecret,
	}
}

// HandleStripeEvent handles POST /webhooks/payment. The endpoint always
// acknowledges verified events so the gateway does not retry events we choose
// to ignore.
func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "failed to read request body")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		logger.Warn("Rejected webhook with invalid signature", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(w, r, event)
	default:
		logger.Debug("Ignoring webhook event", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		logger.Error("Failed to parse checkout session event", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed event payload")
		return
	}

	rawID, ok := session.Metadata["overstay_record_id"]
	if !ok {
		// Checkout sessions from other flows pass through here too.
		w.WriteHeader(http.StatusOK)
		return
	}

	recordID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		logger.Error("Webhook carried an unparseable overstay record id", "value", rawID)
		w.WriteHeader(http.StatusOK)
		return
	}

	var paymentIntentID string
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	if err := h.overstays.ResolveFromCheckout(r.Context(), recordID, paymentIntentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStateConflict) {
			// Nothing a gateway retry could fix. Acknowledge and log.
			logger.Warn("Checkout completion could not be applied",
				"overstay_record_id", recordID, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		logger.Error("Failed to resolve overstay from checkout",
			"overstay_record_id", recordID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process event")
		return
	}

	logger.Info("Overstay resolved from checkout session",
		"overstay_record_id", recordID, "session_id", session.ID)
	w.WriteHeader(http.StatusOK)
}
