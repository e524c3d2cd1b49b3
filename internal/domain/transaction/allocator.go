package transaction

import (
	"github.com/shopspring/decimal"
)

// Preference is an explicit funding preference supplied by the caller.
type Preference struct {
	Method       string // credit, card or split
	CreditAmount decimal.Decimal
}

// Allocation is the split of a purchase between stored credit and an
// external card charge. It is computed once at creation time and never
// changes for the lifetime of the transaction.
type Allocation struct {
	CreditAmount decimal.Decimal
	CardAmount   decimal.Decimal
	Method       Method
}

// Allocate splits amount between available credit and card.
//
// With no preference, credit is used in full when it covers the amount;
// otherwise all available credit is used and the remainder goes to card.
// An explicit preference is honored, but the credit portion is clamped to
// min(preferred, availableCredit, amount) so a preference can never spend
// credit the user does not have.
func Allocate(amount, availableCredit decimal.Decimal, pref *Preference) Allocation {
	var creditAmount decimal.Decimal

	switch {
	case pref == nil:
		creditAmount = decimal.Min(availableCredit, amount)
	case pref.Method == "card":
		creditAmount = decimal.Zero
	case pref.Method == "credit":
		creditAmount = decimal.Min(availableCredit, amount)
	default: // split with explicit sub-amount
		creditAmount = decimal.Min(pref.CreditAmount, decimal.Min(availableCredit, amount))
	}

	if creditAmount.IsNegative() {
		creditAmount = decimal.Zero
	}

	cardAmount := amount.Sub(creditAmount)

	return Allocation{
		CreditAmount: creditAmount,
		CardAmount:   cardAmount,
		Method:       deriveMethod(creditAmount, cardAmount),
	}
}

func deriveMethod(creditAmount, cardAmount decimal.Decimal) Method {
	switch {
	case cardAmount.IsZero():
		return MethodCredit
	case creditAmount.IsZero():
		return MethodStripe
	default:
		return MethodHybrid
	}
}
