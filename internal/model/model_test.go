package model

import "testing"

func TestTokenComplement(t *testing.T) {
	t.Parallel()
	if TokenA.Complement() != TokenB {
		t.Errorf("TokenA.Complement() = %v, want TokenB", TokenA.Complement())
	}
	if TokenB.Complement() != TokenA {
		t.Errorf("TokenB.Complement() = %v, want TokenA", TokenB.Complement())
	}
}

func TestParseSide(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"BUY", Buy, false},
		{"buy", Buy, false},
		{"Buy", Buy, false},
		{"SELL", Sell, false},
		{"sell", Sell, false},
		{"Sell", Sell, false},
		{"bogus", 0, true},
	}
	for _, c := range cases {
		got, err := ParseSide(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseSide(%q) = nil error, want error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSide(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseSide(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestOrderSameBucket(t *testing.T) {
	t.Parallel()
	a := NewOrder(10, 0.5, Buy, TokenA)
	b := NewOrder(20, 0.5, Buy, TokenA)
	if !a.SameBucket(b) {
		t.Error("orders differing only in size should be in the same bucket")
	}

	c := NewOrder(10, 0.51, Buy, TokenA)
	if a.SameBucket(c) {
		t.Error("orders with different price should not be in the same bucket")
	}

	d := NewOrder(10, 0.5, Sell, TokenA)
	if a.SameBucket(d) {
		t.Error("orders with different side should not be in the same bucket")
	}

	e := NewOrder(10, 0.5, Buy, TokenB)
	if a.SameBucket(e) {
		t.Error("orders with different token should not be in the same bucket")
	}
}

func TestOrderPrice64Size64(t *testing.T) {
	t.Parallel()
	o := NewOrder(12.34, 0.56, Buy, TokenA)
	if o.Price64() != 0.56 {
		t.Errorf("Price64() = %v, want 0.56", o.Price64())
	}
	if o.Size64() != 12.34 {
		t.Errorf("Size64() = %v, want 12.34", o.Size64())
	}
}

func TestBalancesAnyZero(t *testing.T) {
	t.Parallel()
	b := Balances{"TokenA": 10, "TokenB": 5, Collateral: 0}
	if !b.AnyZero() {
		t.Error("AnyZero() = false, want true when a balance is zero")
	}

	b2 := Balances{"TokenA": 10, "TokenB": 5, Collateral: 3}
	if b2.AnyZero() {
		t.Error("AnyZero() = true, want false when no balance is zero")
	}
}

func TestBalancesSum(t *testing.T) {
	t.Parallel()
	b := Balances{"TokenA": 10, "TokenB": 5.5, Collateral: 1.5}
	if got := b.Sum(); got != 17 {
		t.Errorf("Sum() = %v, want 17", got)
	}
}

func TestRoundDown(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in       float64
		decimals int
		want     float64
	}{
		{1.239, 2, 1.23},
		{1.231, 2, 1.23},
		{0.005, 2, 0.0},
		{5, 2, 5},
	}
	for _, c := range cases {
		if got := RoundDown(c.in, c.decimals); got != c.want {
			t.Errorf("RoundDown(%v, %d) = %v, want %v", c.in, c.decimals, got, c.want)
		}
	}
}

func TestRound2(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   float64
		want float64
	}{
		{1.235, 1.24},
		{1.234, 1.23},
		{0.5, 0.5},
	}
	for _, c := range cases {
		if got := Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestMarketTokenIDAndTokenFor(t *testing.T) {
	t.Parallel()
	m := NewMarket("0xcond", 111, 222)

	if m.TokenID(TokenA) != 111 {
		t.Errorf("TokenID(TokenA) = %d, want 111", m.TokenID(TokenA))
	}
	if m.TokenID(TokenB) != 222 {
		t.Errorf("TokenID(TokenB) = %d, want 222", m.TokenID(TokenB))
	}

	tok, ok := m.TokenFor(222)
	if !ok || tok != TokenB {
		t.Errorf("TokenFor(222) = (%v, %v), want (TokenB, true)", tok, ok)
	}

	if _, ok := m.TokenFor(999); ok {
		t.Error("TokenFor(999) = ok=true, want false for unknown token id")
	}
}
