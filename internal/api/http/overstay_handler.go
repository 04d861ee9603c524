package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/service"
)

// OverstayHandler exposes the penalty lifecycle over HTTP. All routes sit
// behind manager auth except the payment webhook.
type OverstayHandler struct {
	overstays service.OverstayService
}

func NewOverstayHandler(overstays service.OverstayService) *OverstayHandler {
	return &OverstayHandler{overstays: overstays}
}

type decisionRequest struct {
	Action            string `json:"action"` // "approve", "adjust" or "waive"
	FinalPenaltyCents *int64 `json:"final_penalty_cents,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

type refundRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty"`
	Reason      string `json:"reason"`
}

type listResponse struct {
	Overstays []domain.OverstayRecord `json:"overstays"`
	Total     int32                   `json:"total"`
	Page      int32                   `json:"page"`
	PageSize  int32                   `json:"page_size"`
}

type detailResponse struct {
	Overstay *domain.OverstayRecord        `json:"overstay"`
	History  []domain.OverstayHistoryEntry `json:"history"`
}

type chargeResponse struct {
	Overstay      *domain.OverstayRecord `json:"overstay"`
	Charged       bool                   `json:"charged"`
	Escalated     bool                   `json:"escalated"`
	CheckoutURL   string                 `json:"checkout_url,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
}

// List handles GET /api/v1/overstays
func (h *OverstayHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	page := int32(1)
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = int32(n)
		}
	}
	pageSize := int32(20)
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = int32(n)
		}
	}

	records, total, err := h.overstays.ListOverstays(r.Context(), status, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, listResponse{
		Overstays: records,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

// Get handles GET /api/v1/overstays/{id}
func (h *OverstayHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	record, history, err := h.overstays.GetOverstay(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, detailResponse{Overstay: record, History: history})
}

// Decide handles POST /api/v1/overstays/{id}/decision
func (h *OverstayHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	var decision service.Decision
	switch req.Action {
	case "approve":
		decision = service.ApproveDecision{FinalPenaltyCents: req.FinalPenaltyCents, Notes: req.Notes}
	case "adjust":
		if req.FinalPenaltyCents == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "final_penalty_cents is required for adjust")
			return
		}
		decision = service.AdjustDecision{FinalPenaltyCents: *req.FinalPenaltyCents, Notes: req.Notes}
	case "waive":
		decision = service.WaiveDecision{Reason: req.Reason, Notes: req.Notes}
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", "action must be approve, adjust or waive")
		return
	}

	claims := ClaimsFromContext(r.Context())
	record, err := h.overstays.ApplyDecision(r.Context(), id, claims.UserID, decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, record)
}

// Charge handles POST /api/v1/overstays/{id}/charge
func (h *OverstayHandler) Charge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	claims := ClaimsFromContext(r.Context())
	outcome, err := h.overstays.ChargePenalty(r.Context(), id, &claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, chargeResponse{
		Overstay:      outcome.Record,
		Charged:       outcome.Charged,
		Escalated:     outcome.Escalated,
		CheckoutURL:   outcome.CheckoutURL,
		FailureReason: outcome.FailureReason,
	})
}

// Refund handles POST /api/v1/overstays/{id}/refund
func (h *OverstayHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "reason is required")
		return
	}

	claims := ClaimsFromContext(r.Context())
	record, err := h.overstays.RefundPenalty(r.Context(), service.RefundRequest{
		OverstayRecordID:   id,
		Reason:             req.Reason,
		RefundedBy:         claims.UserID,
		PartialAmountCents: req.AmountCents,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, record)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid overstay id")
		return 0, false
	}
	return id, true
}
