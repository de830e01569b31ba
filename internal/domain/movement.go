/**
 * @description
 * This file defines the movement ledger entry and the request/response DTOs
 * accepted by the ledger API. A movement is one immutable signed entry against
 * a box; every balance change produces exactly one movement per box touched,
 * and two-box operations produce two movements whose amounts are additive
 * inverses (double-entry).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementKind discriminates the ledger entry types.
type MovementKind string

const (
	MovementTransferOut     MovementKind = "TRANSFER_OUT"
	MovementTransferIn      MovementKind = "TRANSFER_IN"
	MovementExpense         MovementKind = "EXPENSE"
	MovementWithdrawal      MovementKind = "WITHDRAWAL"
	MovementRecovery        MovementKind = "RECOVERY"
	MovementAdminCorrection MovementKind = "ADMIN_CORRECTION"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementTransferOut, MovementTransferIn, MovementExpense,
		MovementWithdrawal, MovementRecovery, MovementAdminCorrection:
		return true
	}
	return false
}

// Movement is one immutable ledger record. The sign of Amount encodes
// direction; CreatedAt is server-assigned at append time. Movements are never
// updated or deleted.
type Movement struct {
	ID          uuid.UUID    `json:"id"`
	BoxID       uuid.UUID    `json:"box_id"`
	Amount      int64        `json:"amount"` // signed, in centavos
	Kind        MovementKind `json:"kind"`
	ActorID     uuid.UUID    `json:"actor_id"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
}

// MovementListOptions controls filtering when reading a box's audit trail.
// Records always come back in creation order.
type MovementListOptions struct {
	Kind MovementKind
	From *time.Time
	To   *time.Time
}

// MovementRequest is the DTO for the movement-creating endpoints (transfer,
// expense, withdrawal). Amount is in decimal currency units; TargetUserID is
// required for the two-box operations and ignored for expenses.
type MovementRequest struct {
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
	Amount       float64    `json:"amount"`
	Description  string     `json:"description,omitempty"`
}

// BoxUpdateRequest is the DTO for the administrative correction endpoint.
// Either field may be omitted; present fields are absolute overwrites in
// decimal currency units.
type BoxUpdateRequest struct {
	BaseBalance      *float64 `json:"base_balance,omitempty"`
	InsuranceBalance *float64 `json:"insurance_balance,omitempty"`
}

// CashCountRequest carries the physically counted total for a day close.
type CashCountRequest struct {
	TotalAmount float64 `json:"total_amount"`
}

// ReconciliationStatus classifies a cash count against the system balance.
type ReconciliationStatus string

const (
	ReconciliationMatch    ReconciliationStatus = "MATCH"
	ReconciliationSurplus  ReconciliationStatus = "SURPLUS"
	ReconciliationShortage ReconciliationStatus = "SHORTAGE"
)

// CashCountResult is the outcome of a day-close reconciliation. All amounts
// are in decimal currency units. Reconciliation is read-only: it reports, it
// never adjusts.
type CashCountResult struct {
	SystemBalance  float64              `json:"system_balance"`
	CountedBalance float64              `json:"counted_balance"`
	Difference     float64              `json:"difference"`
	Status         ReconciliationStatus `json:"status"`
}

// MovementRecordedPayload is the message payload published to RabbitMQ after
// a ledger operation commits. Amounts are in centavos.
type MovementRecordedPayload struct {
	MovementID uuid.UUID    `json:"movement_id"`
	BoxID      uuid.UUID    `json:"box_id"`
	OwnerID    uuid.UUID    `json:"owner_id"`
	Amount     int64        `json:"amount"`
	Kind       MovementKind `json:"kind"`
	ActorID    uuid.UUID    `json:"actor_id"`
	Timestamp  time.Time    `json:"timestamp"`
}

// CashCountCompletedPayload is published after a day-close reconciliation.
type CashCountCompletedPayload struct {
	OwnerID        uuid.UUID            `json:"owner_id"`
	SystemBalance  float64              `json:"system_balance"`
	CountedBalance float64              `json:"counted_balance"`
	Difference     float64              `json:"difference"`
	Status         ReconciliationStatus `json:"status"`
	Timestamp      time.Time            `json:"timestamp"`
}
