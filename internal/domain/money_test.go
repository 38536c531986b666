package domain

import "testing"

func TestMoney_NormalizesTrailingZeros(t *testing.T) {
	a, err := MoneyFromString("12.5000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Canonical() != "12.5" {
		t.Fatalf("got %q, want %q", a.Canonical(), "12.5")
	}

	b, err := MoneyFromString("12.50")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("numerically equal amounts must normalize identically: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestMoney_ZeroCanonicalizesToZero(t *testing.T) {
	a, err := MoneyFromString("0.000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Canonical() != "0" {
		t.Fatalf("got %q, want %q", a.Canonical(), "0")
	}
	if !a.IsZero() {
		t.Fatalf("expected IsZero")
	}
}

func TestMoney_FromCents(t *testing.T) {
	m := MoneyFromCents(1050)
	if m.Canonical() != "10.5" {
		t.Fatalf("got %q, want %q", m.Canonical(), "10.5")
	}
}

func TestMoney_AddSubNeg(t *testing.T) {
	a, _ := MoneyFromString("10")
	b, _ := MoneyFromString("4.5")
	if got := a.Add(b).Canonical(); got != "14.5" {
		t.Fatalf("add: got %q", got)
	}
	if got := a.Sub(b).Canonical(); got != "5.5" {
		t.Fatalf("sub: got %q", got)
	}
	if got := a.Neg().Canonical(); got != "-10" {
		t.Fatalf("neg: got %q", got)
	}
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	a, _ := MoneyFromString("99.90")
	b, err := a.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var c Money
	if err := c.UnmarshalJSON(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !c.Equal(a) {
		t.Fatalf("round trip mismatch: %s vs %s", c, a)
	}
}
