package transaction

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestScoreRisk(t *testing.T) {
	tests := []struct {
		name string
		in   RiskInput
		want int
	}{
		{
			name: "no history, low ratio",
			in: RiskInput{
				Amount:          d("300.00"),
				CreditLimit:     d("1000.00"),
				AvailableCredit: d("1000.00"),
				PriorCount:      0,
				Plan:            PlanTwo,
			},
			want: 25,
		},
		{
			name: "no history, high ratio",
			in: RiskInput{
				Amount:          d("850.00"),
				CreditLimit:     d("1000.00"),
				AvailableCredit: d("900.00"),
				PriorCount:      0,
				Plan:            PlanTwo,
			},
			want: 55,
		},
		{
			name: "established user, moderate ratio",
			in: RiskInput{
				Amount:          d("600.00"),
				CreditLimit:     d("1000.00"),
				AvailableCredit: d("800.00"),
				PriorCount:      12,
				Plan:            PlanTwo,
			},
			want: 15,
		},
		{
			name: "insufficient available credit",
			in: RiskInput{
				Amount:          d("100.00"),
				CreditLimit:     d("1000.00"),
				AvailableCredit: d("50.00"),
				PriorCount:      5,
				Plan:            PlanTwo,
			},
			want: 40,
		},
		{
			name: "recent failures stack",
			in: RiskInput{
				Amount:           d("100.00"),
				CreditLimit:      d("1000.00"),
				AvailableCredit:  d("500.00"),
				PriorCount:       5,
				FailedLast30Days: 3,
				Plan:             PlanTwo,
			},
			want: 30,
		},
		{
			name: "velocity and plan length",
			in: RiskInput{
				Amount:          d("100.00"),
				CreditLimit:     d("1000.00"),
				AvailableCredit: d("500.00"),
				PriorCount:      5,
				CreatedLast24h:  3,
				Plan:            PlanFour,
			},
			want: 25,
		},
		{
			// No credit line: the ratio band is maximally exceeded, it must
			// not be skipped just because the division is undefined.
			name: "zero credit limit counts as top ratio band",
			in: RiskInput{
				Amount:          d("100.00"),
				CreditLimit:     d("0.00"),
				AvailableCredit: d("0.00"),
				PriorCount:      5,
				Plan:            PlanTwo,
			},
			want: 70, // 30 ratio + 40 insufficient available credit
		},
		{
			name: "score caps at 100",
			in: RiskInput{
				Amount:           d("950.00"),
				CreditLimit:      d("1000.00"),
				AvailableCredit:  d("10.00"),
				PriorCount:       0,
				FailedLast30Days: 10,
				CreatedLast24h:   5,
				Plan:             PlanFour,
			},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreRisk(tt.in); got != tt.want {
				t.Errorf("ScoreRisk() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(25); got != StatusApproved {
		t.Errorf("score 25: got %s, want %s", got, StatusApproved)
	}
	if got := InitialStatus(30); got != StatusApproved {
		t.Errorf("score 30 is the threshold: got %s, want %s", got, StatusApproved)
	}
	if got := InitialStatus(55); got != StatusPending {
		t.Errorf("score 55: got %s, want %s", got, StatusPending)
	}
	if got := InitialStatus(FallbackRiskScore); got != StatusPending {
		t.Errorf("fallback score must route to review: got %s", got)
	}
}
