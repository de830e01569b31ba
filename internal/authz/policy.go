/**
 * @description
 * This package implements the authorization policy for ledger operations as a
 * single declarative table. The policy is a pure decision function over
 * (principal, target, operation): it performs no I/O and mutates nothing,
 * which keeps it testable in complete isolation from the transaction logic.
 *
 * Rules:
 * - View box / list movements: ADMIN any target; SUPERVISOR self or direct
 *   subordinate; COLLECTOR self only.
 * - Transfer and Withdraw: SUPERVISOR only, and only against a direct
 *   subordinate. ADMIN is intentionally excluded: moving custody cash is a
 *   supervisor action, not an administrative one.
 * - Expense: any role, self only.
 * - Admin correction: ADMIN only, unrestricted target.
 *
 * Box absence is never decided here; a missing box is a not-found failure,
 * not an authorization failure.
 */

package authz

import "github.com/cobraflow/ledger-service/internal/domain"

// Operation identifies a ledger operation being authorized.
type Operation string

const (
	OpViewBox      Operation = "view_box"
	OpTransfer     Operation = "transfer"
	OpWithdraw     Operation = "withdraw"
	OpExpense      Operation = "expense"
	OpAdminCorrect Operation = "admin_correct"
)

// Reason codes carried on deny decisions.
const (
	ReasonNotAuthorized = "not_authorized"
	ReasonUnknownOp     = "unknown_operation"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// rule decides one operation for a (principal, target) pair. Target carries
// the supervisor back-reference needed for subordination checks.
type rule func(principal, target *domain.Principal) Decision

// rules is the complete authorization matrix. Every operation the ledger
// supports has exactly one entry; anything outside the matrix is denied.
var rules = map[Operation]rule{
	OpViewBox: func(p, t *domain.Principal) Decision {
		switch p.Role {
		case domain.RoleAdmin:
			return allow()
		case domain.RoleSupervisor:
			if p.ID == t.ID || p.IsSupervisorOf(t) {
				return allow()
			}
		case domain.RoleCollector:
			if p.ID == t.ID {
				return allow()
			}
		}
		return deny(ReasonNotAuthorized)
	},
	OpTransfer: supervisorOverSubordinate,
	OpWithdraw: supervisorOverSubordinate,
	OpExpense: func(p, t *domain.Principal) Decision {
		if p.ID == t.ID {
			return allow()
		}
		return deny(ReasonNotAuthorized)
	},
	OpAdminCorrect: func(p, t *domain.Principal) Decision {
		if p.Role == domain.RoleAdmin {
			return allow()
		}
		return deny(ReasonNotAuthorized)
	},
}

// supervisorOverSubordinate is the shared rule for the two cash-custody
// operations between a supervisor's box and a subordinate's box.
func supervisorOverSubordinate(p, t *domain.Principal) Decision {
	if p.Role != domain.RoleSupervisor {
		return deny(ReasonNotAuthorized)
	}
	if !p.IsSupervisorOf(t) {
		return deny(ReasonNotAuthorized)
	}
	return allow()
}

// Authorize evaluates the matrix for one operation. Unknown operations are
// denied.
func Authorize(principal, target *domain.Principal, op Operation) Decision {
	r, ok := rules[op]
	if !ok {
		return deny(ReasonUnknownOp)
	}
	return r(principal, target)
}
