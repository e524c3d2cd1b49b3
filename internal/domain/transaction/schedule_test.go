package transaction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestBuildScheduleBiweeklyEvenSplit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	schedule, err := BuildSchedule(uuid.New(), d("100.00"), PlanFour, now, BiweeklyPolicy{}, now)
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}
	if len(schedule) != 4 {
		t.Fatalf("expected 4 installments, got %d", len(schedule))
	}

	wantDays := []int{0, 14, 28, 42}
	for i, inst := range schedule {
		if !inst.Amount.Equal(d("25.00")) {
			t.Errorf("installment %d amount = %s, want 25.00", i+1, inst.Amount)
		}
		if inst.Number != i+1 {
			t.Errorf("installment %d number = %d", i+1, inst.Number)
		}
		wantDue := now.AddDate(0, 0, wantDays[i])
		if !inst.DueDate.Equal(wantDue) {
			t.Errorf("installment %d due = %s, want %s", i+1, inst.DueDate, wantDue)
		}
	}

	if schedule[0].Status != InstallmentProcessing {
		t.Errorf("first installment due now must be processing, got %s", schedule[0].Status)
	}
	for _, inst := range schedule[1:] {
		if inst.Status != InstallmentScheduled {
			t.Errorf("installment %d must be scheduled, got %s", inst.Number, inst.Status)
		}
	}
}

func TestBuildScheduleLastAbsorbsRemainder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	schedule, err := BuildSchedule(uuid.New(), d("100.01"), PlanThree, now, BiweeklyPolicy{}, now)
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}

	want := []string{"33.34", "33.34", "33.33"}
	for i, inst := range schedule {
		if inst.Amount.StringFixed(2) != want[i] {
			t.Errorf("installment %d amount = %s, want %s", i+1, inst.Amount.StringFixed(2), want[i])
		}
	}
}

func TestBuildScheduleChronologicalNumbering(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, 1)

	// Offsets deliberately out of order.
	policy := OffsetPolicy{Days: []int{28, 0, 42, 14}}
	schedule, err := BuildSchedule(uuid.New(), d("100.01"), PlanFour, start, policy, now)
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}

	for i, inst := range schedule {
		if inst.Number != i+1 {
			t.Errorf("position %d has number %d", i, inst.Number)
		}
		if i > 0 && schedule[i].DueDate.Before(schedule[i-1].DueDate) {
			t.Errorf("numbers not increasing with due date at position %d", i)
		}
	}

	// The chronologically last installment absorbs the remainder, regardless
	// of generation order.
	if schedule[3].Amount.StringFixed(2) != "25.01" {
		t.Errorf("last installment amount = %s, want 25.01", schedule[3].Amount.StringFixed(2))
	}
	if !schedule[3].DueDate.Equal(start.AddDate(0, 0, 42)) {
		t.Errorf("last installment due = %s, want day 42", schedule[3].DueDate)
	}
}

func TestBuildScheduleFutureStartAllScheduled(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	schedule, err := BuildSchedule(uuid.New(), d("60.00"), PlanTwo, now.AddDate(0, 0, 7), BiweeklyPolicy{}, now)
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}
	for _, inst := range schedule {
		if inst.Status != InstallmentScheduled {
			t.Errorf("installment %d status = %s, want scheduled", inst.Number, inst.Status)
		}
	}
}

func TestBuildScheduleSumsExactly(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	amounts := []string{"0.03", "10.00", "99.99", "100.01", "33.33", "1234.56", "0.05"}
	plans := []Plan{PlanTwo, PlanThree, PlanFour}

	for _, amt := range amounts {
		for _, plan := range plans {
			schedule, err := BuildSchedule(uuid.New(), d(amt), plan, now, MonthlyPolicy{}, now)
			if err != nil {
				t.Fatalf("BuildSchedule(%s, %s) failed: %v", amt, plan, err)
			}
			sum := decimal.Zero
			for _, inst := range schedule {
				sum = sum.Add(inst.Amount)
			}
			if !sum.Equal(d(amt)) {
				t.Errorf("amount %s plan %s: schedule sums to %s", amt, plan, sum)
			}
		}
	}
}

func TestBuildScheduleMonthlyDates(t *testing.T) {
	start := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	schedule, err := BuildSchedule(uuid.New(), d("90.00"), PlanThree, start, MonthlyPolicy{}, start)
	if err != nil {
		t.Fatalf("BuildSchedule failed: %v", err)
	}
	if !schedule[0].DueDate.Equal(start) {
		t.Errorf("first due = %s, want %s", schedule[0].DueDate, start)
	}
	if !schedule[1].DueDate.Equal(start.AddDate(0, 1, 0)) {
		t.Errorf("second due = %s, want %s", schedule[1].DueDate, start.AddDate(0, 1, 0))
	}
}
