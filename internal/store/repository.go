/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the ledger-service needs: principal lookup, box reads, the
 * append-only movement log, and a transaction scope for the atomic ledger
 * mutations. Defining an interface decouples the ledger engine from the
 * PostgreSQL implementation and enables in-memory doubles in tests.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cobraflow/ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
// Read methods never mutate state; all mutation goes through WithinTx.
type Repository interface {
	// FindPrincipalByUserID resolves the role and supervisor relationship of
	// a user. The users table is owned by the identity provider and is
	// strictly read-only here.
	FindPrincipalByUserID(ctx context.Context, userID uuid.UUID) (*domain.Principal, error)

	// GetBoxByUserID returns the box owned by a user, or ErrBoxNotFound.
	GetBoxByUserID(ctx context.Context, userID uuid.UUID) (*domain.Box, error)

	// ListMovementsByBoxID returns a box's movements in creation order,
	// optionally filtered by kind and time range.
	ListMovementsByBoxID(ctx context.Context, boxID uuid.UUID, opts domain.MovementListOptions) ([]domain.Movement, error)

	// WithinTx runs fn inside one atomic transaction. Every balance
	// adjustment and every movement append fn performs either commits
	// together or takes no effect at all.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the per-transaction view of the box store and movement log.
// Implementations must serialize concurrent access to the same box:
// GetBoxForUpdate takes a row-level lock held until the transaction ends.
type LedgerTx interface {
	// GetBoxForUpdate loads a box by owner and locks its row for the duration
	// of the transaction.
	GetBoxForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Box, error)

	// AdjustBalance applies base_balance += delta. It does not validate
	// sufficiency of funds; that check belongs to the caller, before staging
	// the adjustment.
	AdjustBalance(ctx context.Context, boxID uuid.UUID, delta int64) error

	// SetBalances overwrites one or both balance fields with absolute values.
	// Nil pointers leave the corresponding field untouched.
	SetBalances(ctx context.Context, boxID uuid.UUID, base, insurance *int64) error

	// AppendMovement inserts one immutable ledger record with a
	// server-assigned timestamp and returns the stored record. There is no
	// update or delete counterpart.
	AppendMovement(ctx context.Context, m *domain.Movement) (*domain.Movement, error)
}
