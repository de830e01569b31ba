package authz

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cobraflow/ledger-service/internal/domain"
)

func principal(role domain.Role, supervisorID *uuid.UUID) *domain.Principal {
	return &domain.Principal{ID: uuid.New(), Role: role, SupervisorID: supervisorID}
}

func TestAuthorize_Matrix(t *testing.T) {
	admin := principal(domain.RoleAdmin, nil)
	supervisor := principal(domain.RoleSupervisor, nil)
	otherSupervisor := principal(domain.RoleSupervisor, nil)
	collector := principal(domain.RoleCollector, &supervisor.ID)
	strayCollector := principal(domain.RoleCollector, &otherSupervisor.ID)

	tests := []struct {
		name      string
		principal *domain.Principal
		target    *domain.Principal
		op        Operation
		want      bool
	}{
		// view_box
		{"admin views any box", admin, strayCollector, OpViewBox, true},
		{"supervisor views own box", supervisor, supervisor, OpViewBox, true},
		{"supervisor views subordinate box", supervisor, collector, OpViewBox, true},
		{"supervisor denied non-subordinate box", supervisor, strayCollector, OpViewBox, false},
		{"collector views own box", collector, collector, OpViewBox, true},
		{"collector denied other box", collector, strayCollector, OpViewBox, false},
		{"collector denied supervisor box", collector, supervisor, OpViewBox, false},

		// transfer
		{"supervisor transfers to subordinate", supervisor, collector, OpTransfer, true},
		{"supervisor denied transfer to non-subordinate", supervisor, strayCollector, OpTransfer, false},
		{"other supervisor denied transfer to collector", otherSupervisor, collector, OpTransfer, false},
		{"admin denied transfer", admin, collector, OpTransfer, false},
		{"collector denied transfer", collector, strayCollector, OpTransfer, false},
		{"supervisor denied transfer to self", supervisor, supervisor, OpTransfer, false},

		// withdraw
		{"supervisor withdraws from subordinate", supervisor, collector, OpWithdraw, true},
		{"supervisor denied withdraw from non-subordinate", supervisor, strayCollector, OpWithdraw, false},
		{"admin denied withdraw", admin, collector, OpWithdraw, false},
		{"collector denied withdraw", collector, collector, OpWithdraw, false},

		// expense
		{"collector records own expense", collector, collector, OpExpense, true},
		{"supervisor records own expense", supervisor, supervisor, OpExpense, true},
		{"admin records own expense", admin, admin, OpExpense, true},
		{"cross-user expense denied", supervisor, collector, OpExpense, false},

		// admin_correct
		{"admin corrects any box", admin, strayCollector, OpAdminCorrect, true},
		{"supervisor denied correction on subordinate", supervisor, collector, OpAdminCorrect, false},
		{"collector denied correction on self", collector, collector, OpAdminCorrect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Authorize(tt.principal, tt.target, tt.op)
			if got.Allowed != tt.want {
				t.Fatalf("expected allowed=%t, got %t (reason=%q)", tt.want, got.Allowed, got.Reason)
			}
			if !got.Allowed && got.Reason != ReasonNotAuthorized {
				t.Fatalf("expected reason %q on deny, got %q", ReasonNotAuthorized, got.Reason)
			}
		})
	}
}

func TestAuthorize_UnknownOperationDenied(t *testing.T) {
	admin := principal(domain.RoleAdmin, nil)
	got := Authorize(admin, admin, Operation("mint_money"))
	if got.Allowed {
		t.Fatal("expected unknown operation to be denied")
	}
	if got.Reason != ReasonUnknownOp {
		t.Fatalf("expected reason %q, got %q", ReasonUnknownOp, got.Reason)
	}
}
