package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"storhub-backend/internal/security"
	"storhub-backend/internal/service"
)

// NewRouter builds the HTTP API. The webhook route is unauthenticated; it is
// protected by signature verification instead.
func NewRouter(overstays service.OverstayService, notes service.NotificationService, tokens security.TokenManager, webhookSecret string) *mux.Router {
	router := mux.NewRouter()

	auth := NewAuthMiddleware(tokens)
	overstayHandler := NewOverstayHandler(overstays)
	notificationHandler := NewNotificationHandler(notes)
	webhookHandler := NewWebhookHandler(overstays, webhookSecret)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.Handle("/overstays", auth.RequireManager(http.HandlerFunc(overstayHandler.List))).Methods("GET")
	api.Handle("/overstays/{id}", auth.RequireManager(http.HandlerFunc(overstayHandler.Get))).Methods("GET")
	api.Handle("/overstays/{id}/decision", auth.RequireManager(http.HandlerFunc(overstayHandler.Decide))).Methods("POST")
	api.Handle("/overstays/{id}/charge", auth.RequireManager(http.HandlerFunc(overstayHandler.Charge))).Methods("POST")
	api.Handle("/overstays/{id}/refund", auth.RequireManager(http.HandlerFunc(overstayHandler.Refund))).Methods("POST")

	api.Handle("/notifications", auth.RequireAuth(http.HandlerFunc(notificationHandler.List))).Methods("GET")
	api.Handle("/notifications/{id}/read", auth.RequireAuth(http.HandlerFunc(notificationHandler.MarkAsRead))).Methods("POST")

	router.HandleFunc("/webhooks/payment", webhookHandler.HandleStripeEvent).Methods("POST")

	return router
}
