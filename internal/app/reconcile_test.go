package app

import (
	"math"
	"testing"

	"github.com/cobraflow/ledger-service/internal/domain"
)

func TestReconcileClassification(t *testing.T) {
	tests := []struct {
		name           string
		systemBalance  float64
		countedBalance float64
		wantStatus     domain.ReconciliationStatus
		wantDifference float64
	}{
		{
			name:           "exact match",
			systemBalance:  100.00,
			countedBalance: 100.00,
			wantStatus:     domain.ReconciliationMatch,
			wantDifference: 0,
		},
		{
			name:           "counted above system is surplus",
			systemBalance:  100.00,
			countedBalance: 105.50,
			wantStatus:     domain.ReconciliationSurplus,
			wantDifference: 5.50,
		},
		{
			name:           "counted below system is shortage",
			systemBalance:  100.00,
			countedBalance: 97.00,
			wantStatus:     domain.ReconciliationShortage,
			wantDifference: -3.00,
		},
		{
			name:           "sub-cent difference still matches",
			systemBalance:  100.005,
			countedBalance: 100.00,
			wantStatus:     domain.ReconciliationMatch,
			wantDifference: -0.005,
		},
		{
			name:           "difference just over epsilon is surplus",
			systemBalance:  100.00,
			countedBalance: 100.02,
			wantStatus:     domain.ReconciliationSurplus,
			wantDifference: 0.02,
		},
		{
			name:           "zero balances match",
			systemBalance:  0,
			countedBalance: 0,
			wantStatus:     domain.ReconciliationMatch,
			wantDifference: 0,
		},
		{
			name:           "negative system balance with cash on hand is surplus",
			systemBalance:  -50.00,
			countedBalance: 20.00,
			wantStatus:     domain.ReconciliationSurplus,
			wantDifference: 70.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.systemBalance, tt.countedBalance)
			if got.Status != tt.wantStatus {
				t.Errorf("Reconcile(%v, %v) status = %s, want %s", tt.systemBalance, tt.countedBalance, got.Status, tt.wantStatus)
			}
			if math.Abs(got.Difference-tt.wantDifference) > 1e-9 {
				t.Errorf("Reconcile(%v, %v) difference = %v, want %v", tt.systemBalance, tt.countedBalance, got.Difference, tt.wantDifference)
			}
			if got.SystemBalance != tt.systemBalance || got.CountedBalance != tt.countedBalance {
				t.Errorf("Reconcile(%v, %v) echoed balances = (%v, %v)", tt.systemBalance, tt.countedBalance, got.SystemBalance, got.CountedBalance)
			}
		})
	}
}
