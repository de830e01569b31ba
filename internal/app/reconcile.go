/**
 * @description
 * End-of-day reconciliation: compares a physically counted cash total against
 * a box's recorded system balance and classifies the result. The comparison
 * is read-only; any follow-up adjustment is a separate human-triggered
 * operation.
 */

package app

import "github.com/cobraflow/ledger-service/internal/domain"

// ReconciliationEpsilon absorbs floating rounding in the counted total.
// Differences within one cent classify as MATCH.
const ReconciliationEpsilon = 0.01

// Reconcile classifies countedBalance against systemBalance, both in decimal
// currency units. difference = counted - system; beyond the epsilon a
// positive difference is SURPLUS (more cash than recorded) and a negative one
// is SHORTAGE.
func Reconcile(systemBalance, countedBalance float64) domain.CashCountResult {
	difference := countedBalance - systemBalance

	status := domain.ReconciliationMatch
	if difference > ReconciliationEpsilon {
		status = domain.ReconciliationSurplus
	} else if difference < -ReconciliationEpsilon {
		status = domain.ReconciliationShortage
	}

	return domain.CashCountResult{
		SystemBalance:  systemBalance,
		CountedBalance: countedBalance,
		Difference:     difference,
		Status:         status,
	}
}
