package transaction

import (
	"errors"
	"testing"
)

func TestValidateItems(t *testing.T) {
	items := func(rows ...Item) []Item { return rows }

	tests := []struct {
		name    string
		amount  string
		items   []Item
		wantErr bool
	}{
		{
			name:   "exact match",
			amount: "100.00",
			items: items(
				Item{Name: "sneakers", UnitPrice: d("40.00"), Quantity: 2},
				Item{Name: "socks", UnitPrice: d("10.00"), Quantity: 2},
			),
		},
		{
			name:   "one cent gap tolerated",
			amount: "100.01",
			items:  items(Item{Name: "jacket", UnitPrice: d("50.00"), Quantity: 2}),
		},
		{
			name:    "two cent gap rejected",
			amount:  "100.02",
			items:   items(Item{Name: "jacket", UnitPrice: d("50.00"), Quantity: 2}),
			wantErr: true,
		},
		{
			name:    "no items",
			amount:  "100.00",
			items:   nil,
			wantErr: true,
		},
		{
			name:    "zero quantity",
			amount:  "100.00",
			items:   items(Item{Name: "jacket", UnitPrice: d("100.00"), Quantity: 0}),
			wantErr: true,
		},
		{
			name:    "zero unit price",
			amount:  "0.00",
			items:   items(Item{Name: "freebie", UnitPrice: d("0.00"), Quantity: 1}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItems(d(tt.amount), tt.items)
			if tt.wantErr && !errors.Is(err, ErrItemsAmountMismatch) {
				t.Errorf("want ErrItemsAmountMismatch, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlanFromCount(t *testing.T) {
	for count, want := range map[int]Plan{2: PlanTwo, 3: PlanThree, 4: PlanFour} {
		got, err := PlanFromCount(count)
		if err != nil || got != want {
			t.Errorf("PlanFromCount(%d) = %s, %v", count, got, err)
		}
		if got.InstallmentCount() != count {
			t.Errorf("%s.InstallmentCount() = %d, want %d", got, got.InstallmentCount(), count)
		}
	}

	for _, count := range []int{0, 1, 5, -2} {
		if _, err := PlanFromCount(count); !errors.Is(err, ErrInvalidPaymentPlan) {
			t.Errorf("PlanFromCount(%d): want ErrInvalidPaymentPlan, got %v", count, err)
		}
	}
}

func TestInstallmentSetPredicates(t *testing.T) {
	if AllInstallmentsCompleted(nil) {
		t.Error("empty set must not count as completed")
	}

	set := []Installment{
		{Status: InstallmentCompleted},
		{Status: InstallmentScheduled},
	}
	if AllInstallmentsCompleted(set) {
		t.Error("mixed set reported completed")
	}
	if NoInstallmentAttempted(set) {
		t.Error("set with a completed installment reported untouched")
	}

	set[1].Status = InstallmentCompleted
	if !AllInstallmentsCompleted(set) {
		t.Error("fully completed set not recognized")
	}

	untouched := []Installment{
		{Status: InstallmentScheduled},
		{Status: InstallmentFailed},
	}
	if !NoInstallmentAttempted(untouched) {
		t.Error("scheduled and failed installments count as attempted")
	}
	untouched[0].Status = InstallmentProcessing
	if NoInstallmentAttempted(untouched) {
		t.Error("processing installment not counted as attempted")
	}
}
