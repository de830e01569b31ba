/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for box lookups, the append-only movement
 * log, and principal resolution, plus the transaction scope used by the
 * ledger engine for atomic multi-box operations.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobraflow/ledger-service/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrBoxNotFound  = errors.New("box not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindPrincipalByUserID resolves a user's role and supervisor relationship.
// The users table is written by the identity provider only; this service
// reads it to evaluate the authorization hierarchy.
func (r *PostgresRepository) FindPrincipalByUserID(ctx context.Context, userID uuid.UUID) (*domain.Principal, error) {
	var p domain.Principal
	query := `SELECT id, btrim(username), role, supervisor_id FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Username, &p.Role, &p.SupervisorID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetBoxByUserID retrieves the box owned by a user. Read-only, no side effects.
func (r *PostgresRepository) GetBoxByUserID(ctx context.Context, userID uuid.UUID) (*domain.Box, error) {
	var box domain.Box
	query := `SELECT id, owner_id, base_balance, insurance_balance, created_at, updated_at FROM boxes WHERE owner_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&box.ID, &box.OwnerID, &box.BaseBalance, &box.InsuranceBalance, &box.CreatedAt, &box.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBoxNotFound
		}
		return nil, err
	}
	return &box, nil
}

// ListMovementsByBoxID retrieves a box's ledger records in creation order,
// optionally filtered by kind and time range.
func (r *PostgresRepository) ListMovementsByBoxID(ctx context.Context, boxID uuid.UUID, opts domain.MovementListOptions) ([]domain.Movement, error) {
	query := `
		SELECT id, box_id, amount, kind, actor_id, COALESCE(description, '') AS description, created_at
		FROM box_movements
		WHERE box_id = $1
	`
	args := []interface{}{boxID}
	argPos := 2

	if opts.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, opts.Kind)
		argPos++
	}
	if opts.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *opts.From)
		argPos++
	}
	if opts.To != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argPos)
		args = append(args, *opts.To)
		argPos++
	}

	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.BoxID, &m.Amount, &m.Kind, &m.ActorID, &m.Description, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// WithinTx runs fn inside one database transaction. A failure anywhere in fn
// rolls back every staged adjustment and append; the caller never observes
// partial ledger state.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgxLedgerTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// pgxLedgerTx adapts a pgx transaction to the LedgerTx interface.
type pgxLedgerTx struct {
	tx pgx.Tx
}

// GetBoxForUpdate loads a box by owner and takes a row-level lock. Concurrent
// operations touching the same box serialize here, which closes the
// lost-update race on base_balance.
func (t *pgxLedgerTx) GetBoxForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Box, error) {
	var box domain.Box
	query := `
		SELECT id, owner_id, base_balance, insurance_balance, created_at, updated_at
		FROM boxes
		WHERE owner_id = $1
		FOR UPDATE
	`
	err := t.tx.QueryRow(ctx, query, userID).Scan(
		&box.ID, &box.OwnerID, &box.BaseBalance, &box.InsuranceBalance, &box.CreatedAt, &box.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBoxNotFound
		}
		return nil, err
	}
	return &box, nil
}

// AdjustBalance applies base_balance += delta on an already-locked box row.
func (t *pgxLedgerTx) AdjustBalance(ctx context.Context, boxID uuid.UUID, delta int64) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE boxes SET base_balance = base_balance + $1, updated_at = NOW() WHERE id = $2`,
		delta, boxID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBoxNotFound
	}
	return nil
}

// SetBalances overwrites one or both balance fields with absolute values.
func (t *pgxLedgerTx) SetBalances(ctx context.Context, boxID uuid.UUID, base, insurance *int64) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE boxes
		SET
			base_balance = COALESCE($1, base_balance),
			insurance_balance = COALESCE($2, insurance_balance),
			updated_at = NOW()
		WHERE id = $3
	`, base, insurance, boxID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBoxNotFound
	}
	return nil
}

// AppendMovement inserts one immutable ledger record. The timestamp is
// assigned by the database so ordering is consistent across app instances.
func (t *pgxLedgerTx) AppendMovement(ctx context.Context, m *domain.Movement) (*domain.Movement, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO box_movements (id, box_id, amount, kind, actor_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query, m.ID, m.BoxID, m.Amount, m.Kind, m.ActorID, m.Description).Scan(&m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}
	return m, nil
}
