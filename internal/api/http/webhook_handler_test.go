package http_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"storhub-backend/internal/domain"
)

const testWebhookSecret = "whsec_test"

func signatureHeader(payload, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  secret,
	})
	return signed.Header
}

func checkoutCompletedEvent(sessionID, paymentIntentID, metadataJSON string) string {
	return fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":"checkout.session.completed",`+
		`"data":{"object":{"id":%q,"payment_intent":%q%s}}}`,
		stripe.APIVersion, sessionID, paymentIntentID, metadataJSON)
}

func postWebhook(router http.Handler, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/payment", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler_HandleStripeEvent(t *testing.T) {
	t.Run("Completed Checkout Resolves The Record", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)
		svc.On("ResolveFromCheckout", mock.Anything, int64(7), "pi_web_1").Return(nil)

		payload := checkoutCompletedEvent("cs_test_1", "pi_web_1",
			`,"metadata":{"overstay_record_id":"7"}`)
		rr := postWebhook(router, payload, signatureHeader(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Invalid Signature Is Rejected", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)

		payload := checkoutCompletedEvent("cs_test_1", "pi_web_1",
			`,"metadata":{"overstay_record_id":"7"}`)
		rr := postWebhook(router, payload, signatureHeader(payload, "whsec_someone_else"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ResolveFromCheckout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Session From Another Flow Passes Through", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)

		payload := checkoutCompletedEvent("cs_test_2", "pi_web_2", "")
		rr := postWebhook(router, payload, signatureHeader(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertNotCalled(t, "ResolveFromCheckout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Already Terminal Record Is Acknowledged", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)
		svc.On("ResolveFromCheckout", mock.Anything, int64(9), "pi_web_3").
			Return(fmt.Errorf("%w: record 9 already terminal", domain.ErrStateConflict))

		payload := checkoutCompletedEvent("cs_test_3", "pi_web_3",
			`,"metadata":{"overstay_record_id":"9"}`)
		rr := postWebhook(router, payload, signatureHeader(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Transient Failure Returns 500 For Retry", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)
		svc.On("ResolveFromCheckout", mock.Anything, int64(9), "pi_web_3").
			Return(fmt.Errorf("database unavailable"))

		payload := checkoutCompletedEvent("cs_test_3", "pi_web_3",
			`,"metadata":{"overstay_record_id":"9"}`)
		rr := postWebhook(router, payload, signatureHeader(payload, testWebhookSecret))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("Unrelated Event Types Are Ignored", func(t *testing.T) {
		svc := new(MockOverstayService)
		router, _ := testRouter(svc)

		payload := fmt.Sprintf(`{"id":"evt_2","api_version":%q,"type":"invoice.paid","data":{"object":{}}}`,
			stripe.APIVersion)
		rr := postWebhook(router, payload, signatureHeader(payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rr.Code)
		svc.AssertNotCalled(t, "ResolveFromCheckout", mock.Anything, mock.Anything, mock.Anything)
	})
}
