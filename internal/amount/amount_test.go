package amount_test

import (
	"encoding/json"
	"testing"

	"github.com/plutohub/hub/internal/amount"
)

func TestParseAndString(t *testing.T) {
	a, err := amount.Parse("12345")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.String() != "12345" {
		t.Errorf("String() = %q, want 12345", a.String())
	}
}

func TestParseRejectsNegative(t *testing.T) {
	if _, err := amount.Parse("-5"); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := amount.Parse("12.5"); err == nil {
		t.Error("expected error for fractional amount")
	}
	if _, err := amount.Parse("abc"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestAddSub(t *testing.T) {
	a := amount.MustFromInt64(100)
	b := amount.MustFromInt64(40)

	sum := amount.Add(a, b)
	if sum.String() != "140" {
		t.Errorf("Add = %s, want 140", sum)
	}

	diff, err := amount.SubNonNegative(a, b)
	if err != nil {
		t.Fatalf("SubNonNegative: %v", err)
	}
	if diff.String() != "60" {
		t.Errorf("Sub = %s, want 60", diff)
	}

	if _, err := amount.SubNonNegative(b, a); err == nil {
		t.Error("expected error for negative result")
	}
}

func TestMulBpsFloors(t *testing.T) {
	pot := amount.MustFromInt64(1000)
	fee := amount.MulBps(pot, 333) // 3.33%
	if fee.String() != "33" {
		t.Errorf("MulBps(1000, 333) = %s, want 33", fee)
	}

	fee5pct := amount.MulBps(amount.MustFromInt64(200), 500)
	if fee5pct.String() != "10" {
		t.Errorf("MulBps(200, 500bps) = %s, want 10", fee5pct)
	}
}

func TestCmp(t *testing.T) {
	a := amount.MustFromInt64(5)
	b := amount.MustFromInt64(10)
	if !amount.LessThan(a, b) {
		t.Error("expected 5 < 10")
	}
	if !amount.GreaterThan(b, a) {
		t.Error("expected 10 > 5")
	}
}

func TestSum(t *testing.T) {
	total := amount.Sum(amount.MustFromInt64(1), amount.MustFromInt64(2), amount.MustFromInt64(3))
	if total.String() != "6" {
		t.Errorf("Sum = %s, want 6", total)
	}
	if !amount.Sum().IsZero() {
		t.Error("Sum() with no args should be zero")
	}
}

type wrapper struct {
	Amount amount.Amount `json:"amount"`
}

func TestJSONRoundTrip(t *testing.T) {
	w := wrapper{Amount: amount.MustFromInt64(250)}
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"amount":"250"}` {
		t.Errorf("Marshal = %s, want {\"amount\":\"250\"}", data)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Amount.String() != "250" {
		t.Errorf("round-trip = %s, want 250", out.Amount)
	}
}
