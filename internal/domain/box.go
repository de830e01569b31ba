/**
 * @description
 * This file defines the core domain models for the ledger-service: the cash
 * custody box, the authenticated principal, and the role hierarchy. A box is
 * the per-user record of the physical cash a collector or supervisor is
 * responsible for.
 *
 * @notes
 * - Balances are stored as `int64` in centavos (the smallest currency unit),
 *   which keeps ledger arithmetic exact. Conversion to decimal currency units
 *   happens only at the API boundary.
 */

package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Role is the authority level of a principal. The three roles form a strict
// order: ADMIN > SUPERVISOR > COLLECTOR.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleCollector  Role = "COLLECTOR"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleCollector:
		return true
	}
	return false
}

// Principal is the authenticated identity acting on the ledger. It is
// supplied by the identity provider (the users table is read-only here) and
// trusted as already authenticated.
type Principal struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Role         Role       `json:"role"`
	SupervisorID *uuid.UUID `json:"supervisor_id,omitempty"`
}

// IsSupervisorOf reports whether target is a direct subordinate of p.
func (p *Principal) IsSupervisorOf(target *Principal) bool {
	return target.SupervisorID != nil && *target.SupervisorID == p.ID
}

// Box is the per-user cash custody account. BaseBalance is the spendable
// custody amount and is, at all times, the sum of the signed amounts of the
// movements logged against the box. InsuranceBalance is a separately reserved
// fund that never moves through the double-entry path.
type Box struct {
	ID               uuid.UUID `json:"id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	BaseBalance      int64     `json:"base_balance"`      // in centavos
	InsuranceBalance int64     `json:"insurance_balance"` // in centavos
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CentsFromCurrency converts a decimal currency amount to centavos, rounding
// to the nearest cent.
func CentsFromCurrency(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CurrencyFromCents converts centavos back to decimal currency units.
func CurrencyFromCents(cents int64) float64 {
	return float64(cents) / 100
}
