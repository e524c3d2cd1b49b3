package transaction

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocateNoPreference(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		available  string
		wantCredit string
		wantCard   string
		wantMethod Method
	}{
		{"credit covers fully", "100.00", "500.00", "100.00", "0.00", MethodCredit},
		{"credit covers partially", "100.00", "40.00", "40.00", "60.00", MethodHybrid},
		{"no credit available", "100.00", "0.00", "0.00", "100.00", MethodStripe},
		{"credit exactly equals amount", "100.00", "100.00", "100.00", "0.00", MethodCredit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(d(tt.amount), d(tt.available), nil)
			if !got.CreditAmount.Equal(d(tt.wantCredit)) {
				t.Errorf("credit = %s, want %s", got.CreditAmount, tt.wantCredit)
			}
			if !got.CardAmount.Equal(d(tt.wantCard)) {
				t.Errorf("card = %s, want %s", got.CardAmount, tt.wantCard)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("method = %s, want %s", got.Method, tt.wantMethod)
			}
		})
	}
}

func TestAllocateExplicitPreference(t *testing.T) {
	t.Run("card preference skips credit", func(t *testing.T) {
		got := Allocate(d("100.00"), d("500.00"), &Preference{Method: "card"})
		if !got.CreditAmount.IsZero() || got.Method != MethodStripe {
			t.Errorf("got credit=%s method=%s, want 0/stripe", got.CreditAmount, got.Method)
		}
	})

	t.Run("split honored within available credit", func(t *testing.T) {
		got := Allocate(d("100.00"), d("500.00"), &Preference{Method: "split", CreditAmount: d("30.00")})
		if !got.CreditAmount.Equal(d("30.00")) || !got.CardAmount.Equal(d("70.00")) {
			t.Errorf("got credit=%s card=%s, want 30.00/70.00", got.CreditAmount, got.CardAmount)
		}
		if got.Method != MethodHybrid {
			t.Errorf("method = %s, want hybrid", got.Method)
		}
	})

	t.Run("split clamped to available credit", func(t *testing.T) {
		got := Allocate(d("100.00"), d("20.00"), &Preference{Method: "split", CreditAmount: d("80.00")})
		if !got.CreditAmount.Equal(d("20.00")) {
			t.Errorf("credit = %s, want clamp to 20.00", got.CreditAmount)
		}
	})

	t.Run("split clamped to amount", func(t *testing.T) {
		got := Allocate(d("100.00"), d("500.00"), &Preference{Method: "split", CreditAmount: d("150.00")})
		if !got.CreditAmount.Equal(d("100.00")) {
			t.Errorf("credit = %s, want clamp to 100.00", got.CreditAmount)
		}
		if got.Method != MethodCredit {
			t.Errorf("method = %s, want credit", got.Method)
		}
	})

	t.Run("negative preference treated as zero", func(t *testing.T) {
		got := Allocate(d("100.00"), d("500.00"), &Preference{Method: "split", CreditAmount: d("-10.00")})
		if !got.CreditAmount.IsZero() {
			t.Errorf("credit = %s, want 0", got.CreditAmount)
		}
	})
}

func TestAllocateInvariants(t *testing.T) {
	amounts := []string{"0.01", "50.00", "99.99", "1000.00"}
	availables := []string{"0.00", "0.01", "49.99", "50.00", "2000.00"}

	for _, amt := range amounts {
		for _, avail := range availables {
			got := Allocate(d(amt), d(avail), nil)
			if !got.CreditAmount.Add(got.CardAmount).Equal(d(amt)) {
				t.Errorf("amount=%s available=%s: parts sum to %s", amt, avail, got.CreditAmount.Add(got.CardAmount))
			}
			if got.CreditAmount.GreaterThan(decimal.Min(d(avail), d(amt))) {
				t.Errorf("amount=%s available=%s: credit %s exceeds clamp", amt, avail, got.CreditAmount)
			}
			if got.CreditAmount.IsNegative() || got.CardAmount.IsNegative() {
				t.Errorf("amount=%s available=%s: negative part", amt, avail)
			}
		}
	}
}
