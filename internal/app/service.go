/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct is the transfer engine: it orchestrates every money
 * movement between cash custody boxes, combining the box store and the
 * movement log under the authorization policy.
 *
 * Key properties:
 * - Every mutating operation runs inside one repository transaction; balance
 *   adjustments and movement appends commit together or not at all.
 * - Two-box operations lock both box rows in deterministic owner order, so
 *   concurrent opposite operations cannot deadlock.
 * - Two-box operations write two movements whose amounts are additive
 *   inverses (double-entry).
 * - Events are published to RabbitMQ only after the transaction commits.
 *
 * @dependencies
 * - bytes, context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/authz, internal/domain, internal/store: Policy, models, data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cobraflow/ledger-service/internal/authz"
	"github.com/cobraflow/ledger-service/internal/domain"
	"github.com/cobraflow/ledger-service/internal/store"
	"github.com/cobraflow/ledger-service/pkg/rabbitmq"
)

var (
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInsufficientFunds = errors.New("insufficient funds in source box")
	ErrTargetRequired    = errors.New("target user required for this operation")
	ErrEmptyUpdate       = errors.New("no balance fields to update")
	ErrRateLimited       = errors.New("too many movement requests")
)

// MovementRateLimiter limits how often an actor may create movements.
// Implementations may be distributed (Redis) or absent entirely.
type MovementRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the cash custody ledger.
type Service struct {
	repo          store.Repository
	events        rabbitmq.Publisher
	eventExchange string

	rateLimiter        MovementRateLimiter
	movementRatePerMin int
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, events rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		events:        events,
		eventExchange: eventExchange,
	}
}

// SetMovementRateLimiter installs an optional distributed rate limiter for
// movement-creating operations.
func (s *Service) SetMovementRateLimiter(limiter MovementRateLimiter) {
	s.rateLimiter = limiter
}

// ConfigureMovementRateLimit sets the per-actor movement budget per minute.
// Zero or negative disables limiting.
func (s *Service) ConfigureMovementRateLimit(perMinute int) {
	s.movementRatePerMin = perMinute
}

// TransferResult carries the post-operation state of a two-box operation:
// both boxes with their updated balances and the movement pair recorded.
type TransferResult struct {
	SourceBox *domain.Box
	TargetBox *domain.Box
	Movements []domain.Movement
}

// ViewBox returns the box of targetUserID if the acting principal is allowed
// to see it. Read-only: no call count ever mutates state.
func (s *Service) ViewBox(ctx context.Context, actorID, targetUserID uuid.UUID) (*domain.Box, error) {
	actor, target, err := s.resolvePair(ctx, actorID, targetUserID)
	if err != nil {
		return nil, err
	}
	box, err := s.repo.GetBoxByUserID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(actor, target, authz.OpViewBox); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}
	return box, nil
}

// ListMovements returns the audit trail of targetUserID's box in creation
// order, under the same visibility rules as ViewBox.
func (s *Service) ListMovements(ctx context.Context, actorID, targetUserID uuid.UUID, opts domain.MovementListOptions) ([]domain.Movement, error) {
	actor, target, err := s.resolvePair(ctx, actorID, targetUserID)
	if err != nil {
		return nil, err
	}
	box, err := s.repo.GetBoxByUserID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(actor, target, authz.OpViewBox); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}
	return s.repo.ListMovementsByBoxID(ctx, box.ID, opts)
}

// Transfer moves amount from the acting supervisor's box into a direct
// subordinate's box. The supervisor box must cover the amount; on
// insufficient funds nothing is mutated.
func (s *Service) Transfer(ctx context.Context, actorID uuid.UUID, req domain.MovementRequest) (*TransferResult, error) {
	amount, err := movementAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.TargetUserID == nil {
		return nil, ErrTargetRequired
	}
	actor, target, err := s.resolvePair(ctx, actorID, *req.TargetUserID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(actor, target, authz.OpTransfer); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}
	if err := s.consumeMovementBudget(ctx, "transfer", actor.ID); err != nil {
		return nil, err
	}

	outDesc := req.Description
	if outDesc == "" {
		outDesc = fmt.Sprintf("Transfer to %s", target.Username)
	}
	inDesc := req.Description
	if inDesc == "" {
		inDesc = fmt.Sprintf("Transfer from %s", actor.Username)
	}

	var result TransferResult
	err = s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		supBox, colBox, err := lockBoxPair(ctx, tx, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if supBox.BaseBalance < amount {
			return ErrInsufficientFunds
		}

		out, err := applyMovement(ctx, tx, supBox, -amount, domain.MovementTransferOut, actor.ID, outDesc)
		if err != nil {
			return err
		}
		in, err := applyMovement(ctx, tx, colBox, amount, domain.MovementTransferIn, actor.ID, inDesc)
		if err != nil {
			return err
		}

		result = TransferResult{SourceBox: supBox, TargetBox: colBox, Movements: []domain.Movement{*out, *in}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovements(ctx, &result)
	return &result, nil
}

// Expense records a cost against the acting principal's own box. There is no
// sufficiency check here: a box may go negative to reflect a real-world
// shortfall that day-close reconciliation will surface later. This asymmetry
// with Transfer is deliberate, observed product behavior.
func (s *Service) Expense(ctx context.Context, actorID uuid.UUID, req domain.MovementRequest) (*domain.Box, *domain.Movement, error) {
	amount, err := movementAmount(req.Amount)
	if err != nil {
		return nil, nil, err
	}
	actor, err := s.repo.FindPrincipalByUserID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if d := authz.Authorize(actor, actor, authz.OpExpense); !d.Allowed {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}
	if err := s.consumeMovementBudget(ctx, "expense", actor.ID); err != nil {
		return nil, nil, err
	}

	var (
		box      *domain.Box
		movement *domain.Movement
	)
	err = s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		b, err := tx.GetBoxForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		m, err := applyMovement(ctx, tx, b, -amount, domain.MovementExpense, actor.ID, req.Description)
		if err != nil {
			return err
		}
		box, movement = b, m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishMovement(ctx, box.OwnerID, movement)
	return box, movement, nil
}

// Withdraw pulls amount out of a direct subordinate's box back into the
// acting supervisor's box (base recovery, typically at day close). No
// sufficiency check is applied to the collector box: real cash recovery may
// drive it negative, mirroring Expense.
func (s *Service) Withdraw(ctx context.Context, actorID uuid.UUID, req domain.MovementRequest) (*TransferResult, error) {
	amount, err := movementAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.TargetUserID == nil {
		return nil, ErrTargetRequired
	}
	actor, target, err := s.resolvePair(ctx, actorID, *req.TargetUserID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(actor, target, authz.OpWithdraw); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}
	if err := s.consumeMovementBudget(ctx, "withdraw", actor.ID); err != nil {
		return nil, err
	}

	outDesc := req.Description
	if outDesc == "" {
		outDesc = fmt.Sprintf("Withdrawal by %s", actor.Username)
	}
	inDesc := req.Description
	if inDesc == "" {
		inDesc = fmt.Sprintf("Recovery from %s", target.Username)
	}

	var result TransferResult
	err = s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		supBox, colBox, err := lockBoxPair(ctx, tx, actor.ID, target.ID)
		if err != nil {
			return err
		}

		out, err := applyMovement(ctx, tx, colBox, -amount, domain.MovementWithdrawal, actor.ID, outDesc)
		if err != nil {
			return err
		}
		in, err := applyMovement(ctx, tx, supBox, amount, domain.MovementRecovery, actor.ID, inDesc)
		if err != nil {
			return err
		}

		result = TransferResult{SourceBox: colBox, TargetBox: supBox, Movements: []domain.Movement{*out, *in}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovements(ctx, &result)
	return &result, nil
}

// AdminUpdateBox overwrites a box's balance fields with absolute values.
// Admin only. The overwrite is not a double-entry operation, but it still
// appends an ADMIN_CORRECTION movement with amount = newBase - oldBase in the
// same transaction, so base_balance remains the sum of logged movements.
func (s *Service) AdminUpdateBox(ctx context.Context, actorID, targetUserID uuid.UUID, req domain.BoxUpdateRequest) (*domain.Box, error) {
	if req.BaseBalance == nil && req.InsuranceBalance == nil {
		return nil, ErrEmptyUpdate
	}
	actor, target, err := s.resolvePair(ctx, actorID, targetUserID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(actor, target, authz.OpAdminCorrect); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, d.Reason)
	}

	var (
		box      *domain.Box
		movement *domain.Movement
	)
	err = s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		b, err := tx.GetBoxForUpdate(ctx, target.ID)
		if err != nil {
			return err
		}

		var basePtr, insurancePtr *int64
		baseDelta := int64(0)
		description := "Administrative correction"
		if req.BaseBalance != nil {
			newBase := domain.CentsFromCurrency(*req.BaseBalance)
			baseDelta = newBase - b.BaseBalance
			basePtr = &newBase
			description = fmt.Sprintf("Administrative correction: base %d -> %d", b.BaseBalance, newBase)
		}
		if req.InsuranceBalance != nil {
			newInsurance := domain.CentsFromCurrency(*req.InsuranceBalance)
			insurancePtr = &newInsurance
			description = fmt.Sprintf("%s; insurance %d -> %d", description, b.InsuranceBalance, newInsurance)
		}

		if err := tx.SetBalances(ctx, b.ID, basePtr, insurancePtr); err != nil {
			return err
		}
		m, err := tx.AppendMovement(ctx, &domain.Movement{
			BoxID:       b.ID,
			Amount:      baseDelta,
			Kind:        domain.MovementAdminCorrection,
			ActorID:     actor.ID,
			Description: description,
		})
		if err != nil {
			return err
		}

		if basePtr != nil {
			b.BaseBalance = *basePtr
		}
		if insurancePtr != nil {
			b.InsuranceBalance = *insurancePtr
		}
		box, movement = b, m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovement(ctx, box.OwnerID, movement)
	return box, nil
}

// CloseDay performs the end-of-day cash count against the acting principal's
// own box. It classifies the physically counted total against the recorded
// balance and reports; it never adjusts the box itself.
func (s *Service) CloseDay(ctx context.Context, actorID uuid.UUID, req domain.CashCountRequest) (*domain.CashCountResult, error) {
	box, err := s.repo.GetBoxByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	result := Reconcile(domain.CurrencyFromCents(box.BaseBalance), req.TotalAmount)

	if s.events != nil {
		payload := domain.CashCountCompletedPayload{
			OwnerID:        box.OwnerID,
			SystemBalance:  result.SystemBalance,
			CountedBalance: result.CountedBalance,
			Difference:     result.Difference,
			Status:         result.Status,
			Timestamp:      time.Now().UTC(),
		}
		if err := s.events.Publish(ctx, s.eventExchange, "box.cashcount.completed", payload); err != nil {
			log.Printf("level=warn component=ledger msg=\"cash count event publish failed\" owner_id=%s err=%v", box.OwnerID, err)
		}
	}

	return &result, nil
}

// resolvePair loads the acting and target principals. Identity failures
// surface as store.ErrUserNotFound.
func (s *Service) resolvePair(ctx context.Context, actorID, targetID uuid.UUID) (*domain.Principal, *domain.Principal, error) {
	actor, err := s.repo.FindPrincipalByUserID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actorID == targetID {
		return actor, actor, nil
	}
	target, err := s.repo.FindPrincipalByUserID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	return actor, target, nil
}

// movementAmount validates a decimal currency amount and converts it to
// centavos. Missing, zero, negative, and non-finite amounts are rejected.
func movementAmount(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	cents := domain.CentsFromCurrency(amount)
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// lockBoxPair resolves and locks both boxes of a two-box operation. Rows are
// always locked in ascending owner-id order regardless of transfer direction,
// which prevents deadlock between concurrent opposite operations. Returned
// boxes match the argument order.
func lockBoxPair(ctx context.Context, tx store.LedgerTx, firstOwner, secondOwner uuid.UUID) (*domain.Box, *domain.Box, error) {
	a, b := firstOwner, secondOwner
	swapped := bytes.Compare(a[:], b[:]) > 0
	if swapped {
		a, b = b, a
	}

	boxA, err := tx.GetBoxForUpdate(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	boxB, err := tx.GetBoxForUpdate(ctx, b)
	if err != nil {
		return nil, nil, err
	}

	if swapped {
		return boxB, boxA, nil
	}
	return boxA, boxB, nil
}

// applyMovement stages one side of a ledger operation: the balance adjustment
// and its movement record, always together. The box copy is updated so the
// caller can return post-operation balances without a re-read.
func applyMovement(ctx context.Context, tx store.LedgerTx, box *domain.Box, amount int64, kind domain.MovementKind, actorID uuid.UUID, description string) (*domain.Movement, error) {
	if err := tx.AdjustBalance(ctx, box.ID, amount); err != nil {
		return nil, err
	}
	m, err := tx.AppendMovement(ctx, &domain.Movement{
		BoxID:       box.ID,
		Amount:      amount,
		Kind:        kind,
		ActorID:     actorID,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	box.BaseBalance += amount
	return m, nil
}

// consumeMovementBudget applies the optional per-actor rate limit. Limiter
// outages fail open: the ledger keeps working without the limiter.
func (s *Service) consumeMovementBudget(ctx context.Context, scope string, actorID uuid.UUID) error {
	if s.rateLimiter == nil || s.movementRatePerMin <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, scope, actorID.String(), s.movementRatePerMin, time.Minute)
	if err != nil {
		log.Printf("level=warn component=ledger msg=\"rate limiter unavailable; allowing request\" scope=%s actor_id=%s err=%v", scope, actorID, err)
		return nil
	}
	if count > s.movementRatePerMin {
		return fmt.Errorf("%w: retry in %ds", ErrRateLimited, retryAfter)
	}
	return nil
}

// publishMovements emits one event per movement of a committed two-box
// operation. Publish failures are logged, never surfaced: the ledger state is
// already durable.
func (s *Service) publishMovements(ctx context.Context, result *TransferResult) {
	if s.events == nil {
		return
	}
	owners := map[uuid.UUID]uuid.UUID{
		result.SourceBox.ID: result.SourceBox.OwnerID,
		result.TargetBox.ID: result.TargetBox.OwnerID,
	}
	for i := range result.Movements {
		m := &result.Movements[i]
		s.publishMovement(ctx, owners[m.BoxID], m)
	}
}

func (s *Service) publishMovement(ctx context.Context, ownerID uuid.UUID, m *domain.Movement) {
	if s.events == nil || m == nil {
		return
	}
	payload := domain.MovementRecordedPayload{
		MovementID: m.ID,
		BoxID:      m.BoxID,
		OwnerID:    ownerID,
		Amount:     m.Amount,
		Kind:       m.Kind,
		ActorID:    m.ActorID,
		Timestamp:  m.CreatedAt,
	}
	if err := s.events.Publish(ctx, s.eventExchange, "box.movement.recorded", payload); err != nil {
		log.Printf("level=warn component=ledger msg=\"movement event publish failed\" movement_id=%s err=%v", m.ID, err)
	}
}
