/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the ledger logic.
 *
 * Balances travel over the wire in decimal currency units; the conversion to
 * and from centavos happens here and in the request DTOs, never inside the
 * ledger engine.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cobraflow/ledger-service/internal/app"
	"github.com/cobraflow/ledger-service/internal/domain"
	"github.com/cobraflow/ledger-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BoxHandlers holds the application service that handlers will use.
type BoxHandlers struct {
	service *app.Service
}

// NewBoxHandlers creates a new instance of BoxHandlers.
func NewBoxHandlers(service *app.Service) *BoxHandlers {
	return &BoxHandlers{service: service}
}

// boxResponse mirrors domain.Box with balances in decimal currency units.
type boxResponse struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	BaseBalance      float64   `json:"base_balance"`
	InsuranceBalance float64   `json:"insurance_balance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// movementResponse mirrors domain.Movement with the amount in decimal
// currency units. The sign still encodes direction.
type movementResponse struct {
	ID          string    `json:"id"`
	BoxID       string    `json:"box_id"`
	Amount      float64   `json:"amount"`
	Kind        string    `json:"kind"`
	ActorID     string    `json:"actor_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type movementPairResponse struct {
	Message       string             `json:"message"`
	SourceBalance float64            `json:"source_balance"`
	TargetBalance float64            `json:"target_balance"`
	Movements     []movementResponse `json:"movements"`
}

func buildBoxResponse(box *domain.Box) boxResponse {
	return boxResponse{
		ID:               box.ID.String(),
		OwnerID:          box.OwnerID.String(),
		BaseBalance:      domain.CurrencyFromCents(box.BaseBalance),
		InsuranceBalance: domain.CurrencyFromCents(box.InsuranceBalance),
		CreatedAt:        box.CreatedAt,
		UpdatedAt:        box.UpdatedAt,
	}
}

func buildMovementResponse(m *domain.Movement) movementResponse {
	return movementResponse{
		ID:          m.ID.String(),
		BoxID:       m.BoxID.String(),
		Amount:      domain.CurrencyFromCents(m.Amount),
		Kind:        string(m.Kind),
		ActorID:     m.ActorID.String(),
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func buildMovementPairResponse(message string, result *app.TransferResult) movementPairResponse {
	movements := make([]movementResponse, 0, len(result.Movements))
	for i := range result.Movements {
		movements = append(movements, buildMovementResponse(&result.Movements[i]))
	}
	return movementPairResponse{
		Message:       message,
		SourceBalance: domain.CurrencyFromCents(result.SourceBox.BaseBalance),
		TargetBalance: domain.CurrencyFromCents(result.TargetBox.BaseBalance),
		Movements:     movements,
	}
}

// GetOwnBoxHandler returns the authenticated user's own box.
func (h *BoxHandlers) GetOwnBoxHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	box, err := h.service.ViewBox(r.Context(), actorID, actorID)
	if err != nil {
		h.writeServiceError(w, "get_own_box", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildBoxResponse(box))
}

// GetBoxHandler returns the box of the user named in the URL, subject to the
// viewing rules enforced by the service.
func (h *BoxHandlers) GetBoxHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	box, err := h.service.ViewBox(r.Context(), actorID, targetUserID)
	if err != nil {
		h.writeServiceError(w, "get_box", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildBoxResponse(box))
}

// ListMovementsHandler returns a box's movement history in creation order.
// Optional query parameters: kind, from, to (RFC 3339 timestamps).
func (h *BoxHandlers) ListMovementsHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var opts domain.MovementListOptions
	if kind := r.URL.Query().Get("kind"); kind != "" {
		mk := domain.MovementKind(kind)
		if !mk.Valid() {
			h.writeError(w, http.StatusBadRequest, "Invalid movement kind")
			return
		}
		opts.Kind = mk
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp, expected RFC 3339")
			return
		}
		opts.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp, expected RFC 3339")
			return
		}
		opts.To = &t
	}

	movements, err := h.service.ListMovements(r.Context(), actorID, targetUserID, opts)
	if err != nil {
		h.writeServiceError(w, "list_movements", actorID, err)
		return
	}

	response := make([]movementResponse, 0, len(movements))
	for i := range movements {
		response = append(response, buildMovementResponse(&movements[i]))
	}
	h.writeJSON(w, http.StatusOK, response)
}

// TransferHandler moves cash from the authenticated supervisor's box into a
// subordinate collector's box.
func (h *BoxHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=accepted actor_id=%s amount=%.2f", actorID, req.Amount)

	result, err := h.service.Transfer(r.Context(), actorID, req)
	if err != nil {
		h.writeServiceError(w, "transfer", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildMovementPairResponse("Transfer completed", result))
}

// ExpenseHandler records an operational expense against the authenticated
// user's own box.
func (h *BoxHandlers) ExpenseHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=expense outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	box, movement, err := h.service.Expense(r.Context(), actorID, req)
	if err != nil {
		h.writeServiceError(w, "expense", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Expense recorded",
		"balance":  domain.CurrencyFromCents(box.BaseBalance),
		"movement": buildMovementResponse(movement),
	})
}

// WithdrawHandler pulls cash back from a subordinate collector's box into the
// authenticated supervisor's box.
func (h *BoxHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=withdraw outcome=accepted actor_id=%s amount=%.2f", actorID, req.Amount)

	result, err := h.service.Withdraw(r.Context(), actorID, req)
	if err != nil {
		h.writeServiceError(w, "withdraw", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildMovementPairResponse("Withdrawal completed", result))
}

// AdminUpdateBoxHandler overwrites balances on the target user's box. Admins
// only; the service appends a correction movement alongside the overwrite.
func (h *BoxHandlers) AdminUpdateBoxHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	targetUserID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req domain.BoxUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=admin_update_box outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=admin_update_box outcome=accepted actor_id=%s target_user_id=%s", actorID, targetUserID)

	box, err := h.service.AdminUpdateBox(r.Context(), actorID, targetUserID, req)
	if err != nil {
		h.writeServiceError(w, "admin_update_box", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildBoxResponse(box))
}

// CloseDayHandler reconciles the physically counted cash against the
// authenticated user's system balance.
func (h *BoxHandlers) CloseDayHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.CashCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=close_day outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	result, err := h.service.CloseDay(r.Context(), actorID, req)
	if err != nil {
		h.writeServiceError(w, "close_day", actorID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps ledger errors to their HTTP status codes.
func (h *BoxHandlers) writeServiceError(w http.ResponseWriter, endpoint string, actorID uuid.UUID, err error) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed actor_id=%s err=%v", endpoint, actorID, err)
	switch {
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrBoxNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotAuthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrTargetRequired),
		errors.Is(err, app.ErrEmptyUpdate):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed actor_id=%s err=%v", endpoint, actorID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *BoxHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BoxHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
