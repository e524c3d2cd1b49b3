package transaction

import (
	"github.com/shopspring/decimal"
)

// FallbackRiskScore is used whenever the inputs for scoring cannot be
// assembled. It lands above the auto-approval threshold so that lookup
// failures route transactions to manual review instead of waving them
// through.
const FallbackRiskScore = 70

// AutoApproveThreshold is the highest score that still auto-approves.
const AutoApproveThreshold = 30

// RiskInput carries everything the scorer needs. It is assembled by the
// orchestrator from the user store and transaction history; the scorer
// itself performs no lookups.
type RiskInput struct {
	Amount           decimal.Decimal
	CreditLimit      decimal.Decimal
	AvailableCredit  decimal.Decimal
	PriorCount       int // all prior transactions for the user
	FailedLast30Days int
	CreatedLast24h   int
	Plan             Plan
}

// ScoreRisk computes the additive risk score, capped at 100.
func ScoreRisk(in RiskInput) int {
	score := 0

	if in.PriorCount == 0 {
		score += 25
	}

	if in.CreditLimit.IsPositive() {
		ratio := in.Amount.Div(in.CreditLimit)
		switch {
		case ratio.GreaterThan(decimal.NewFromFloat(0.8)):
			score += 30
		case ratio.GreaterThan(decimal.NewFromFloat(0.5)):
			score += 15
		}
	} else {
		// No credit line: any positive amount exceeds the top ratio band.
		score += 30
	}

	score += 10 * in.FailedLast30Days

	if in.AvailableCredit.LessThan(in.Amount) {
		score += 40
	}

	if in.CreatedLast24h >= 3 {
		score += 20
	}

	switch in.Plan {
	case PlanFour:
		score += 5
	case PlanThree:
		score += 3
	case PlanTwo:
	}

	if score > 100 {
		score = 100
	}
	return score
}

// InitialStatus maps a risk score onto the transaction's initial status:
// at or below the threshold the transaction is auto-approved, above it the
// transaction waits for manual review.
func InitialStatus(score int) Status {
	if score <= AutoApproveThreshold {
		return StatusApproved
	}
	return StatusPending
}
