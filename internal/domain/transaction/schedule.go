package transaction

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntervalPolicy produces the due dates for a schedule. Policies are not
// required to emit dates in order; merchant-specific configuration may
// front-load or reorder the cadence.
type IntervalPolicy interface {
	DueDates(start time.Time, count int) []time.Time
}

// BiweeklyPolicy spaces installments 14 days apart starting at start.
type BiweeklyPolicy struct{}

func (BiweeklyPolicy) DueDates(start time.Time, count int) []time.Time {
	dates := make([]time.Time, count)
	for i := 0; i < count; i++ {
		dates[i] = start.AddDate(0, 0, 14*i)
	}
	return dates
}

// MonthlyPolicy spaces installments one calendar month apart.
type MonthlyPolicy struct{}

func (MonthlyPolicy) DueDates(start time.Time, count int) []time.Time {
	dates := make([]time.Time, count)
	for i := 0; i < count; i++ {
		dates[i] = start.AddDate(0, i, 0)
	}
	return dates
}

// OffsetPolicy places installments at explicit day offsets from start.
// Offsets come from merchant configuration and are not guaranteed to be
// sorted.
type OffsetPolicy struct {
	Days []int
}

func (p OffsetPolicy) DueDates(start time.Time, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	for i := 0; i < count && i < len(p.Days); i++ {
		dates = append(dates, start.AddDate(0, 0, p.Days[i]))
	}
	// Pad biweekly past the configured offsets so a short merchant config
	// still yields a full schedule.
	for i := len(dates); i < count; i++ {
		dates = append(dates, start.AddDate(0, 0, 14*i))
	}
	return dates
}

// PolicyFromName maps a cadence name onto its policy; unknown names fall
// back to biweekly.
func PolicyFromName(name string) IntervalPolicy {
	if name == "monthly" {
		return MonthlyPolicy{}
	}
	return BiweeklyPolicy{}
}

// BuildSchedule computes the installment set for a transaction.
//
// The per-installment base is amount/count rounded to cents; every
// installment carries the base except the last, which absorbs the full
// rounding remainder so the set always sums exactly to amount.
//
// Numbering is assigned only after sorting by due date: policies may emit
// dates out of order, and installment numbers must reflect chronological
// order, never generation order. The first installment (after sorting) that
// is already due is marked processing so the orchestrator settles it
// synchronously at creation.
func BuildSchedule(txID uuid.UUID, amount decimal.Decimal, plan Plan, start time.Time, policy IntervalPolicy, now time.Time) ([]Installment, error) {
	count := plan.InstallmentCount()
	if count == 0 {
		return nil, ErrInvalidPaymentPlan
	}

	base := amount.Div(decimal.NewFromInt(int64(count))).Round(2)
	last := amount.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))

	dates := policy.DueDates(start, count)
	if len(dates) != count {
		return nil, ErrInvalidPaymentPlan
	}

	installments := make([]Installment, count)
	for i := 0; i < count; i++ {
		installments[i] = Installment{
			ID:            uuid.New(),
			TransactionID: txID,
			DueDate:       dates[i],
			Status:        InstallmentScheduled,
		}
	}

	sort.SliceStable(installments, func(a, b int) bool {
		return installments[a].DueDate.Before(installments[b].DueDate)
	})
	for i := range installments {
		installments[i].Number = i + 1
		installments[i].Amount = base
	}
	installments[count-1].Amount = last

	if !installments[0].DueDate.After(now) {
		installments[0].Status = InstallmentProcessing
	}

	return installments, nil
}
