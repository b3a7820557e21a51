// Package model defines the shared vocabulary for the keeper: outcome
// tokens, order sides, the Order value type, and the Market that binds a
// condition id to its two derived token ids. None of these types depend on
// any other internal package, so any layer can import them.
package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the default size-quantization precision used throughout
// the quoters: sizes are always floored to this many fractional digits.
const MaxDecimals = 2

// Token identifies one of the two complementary outcomes of a binary
// market.
type Token int

const (
	TokenA Token = iota
	TokenB
)

// Complement returns the other outcome token.
func (t Token) Complement() Token {
	if t == TokenA {
		return TokenB
	}
	return TokenA
}

func (t Token) String() string {
	if t == TokenA {
		return "TokenA"
	}
	return "TokenB"
}

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// ParseSide parses a case-insensitive "BUY"/"SELL" string.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

// Collateral is the pseudo-token key used in Balances for the
// stablecoin-denominated collateral asset.
const Collateral = "Collateral"

// Order is a single resting or intended limit order.
//
// id is empty for a freshly constructed intent and is populated once the
// exchange confirms placement. Two orders are equal for reconciliation
// purposes iff (Price, Side, Token) match — Size and ID are allowed to
// differ.
type Order struct {
	Size  decimal.Decimal
	Price decimal.Decimal
	Side  Side
	Token Token
	ID    string // empty means "not yet placed"
}

// NewOrder constructs an order intent (no id).
func NewOrder(size, price float64, side Side, token Token) Order {
	return Order{
		Size:  decimal.NewFromFloat(size),
		Price: decimal.NewFromFloat(price),
		Side:  side,
		Token: token,
	}
}

// SameBucket reports whether two orders share (price, side, token) — the
// equality the strategy facade and bands quoter use for grouping/diffing.
func (o Order) SameBucket(other Order) bool {
	return o.Side == other.Side && o.Token == other.Token && o.Price.Equal(other.Price)
}

// Price64 and Size64 convert the decimal fields to float64 for the quoter
// math, which chains square roots and is not worth doing in fixed point.
func (o Order) Price64() float64 { f, _ := o.Price.Float64(); return f }
func (o Order) Size64() float64  { f, _ := o.Size.Float64(); return f }

func (o Order) String() string {
	id := o.ID
	if id == "" {
		id = "<unplaced>"
	}
	return fmt.Sprintf("Order[id=%s, price=%s, size=%s, side=%s, token=%s]", id, o.Price, o.Size, o.Side, o.Token)
}

// Balances is the collateral + per-token inventory snapshot reported by
// the on-chain adapter. Negative values are not representable and must
// never be constructed.
type Balances map[string]float64

// TokenKey returns the balance map key for a given outcome token.
func TokenKey(t Token) string {
	if t == TokenA {
		return "TokenA"
	}
	return "TokenB"
}

// AnyZero reports whether any balance entry is exactly zero.
func (b Balances) AnyZero() bool {
	for _, v := range b {
		if v == 0 {
			return true
		}
	}
	return false
}

// Sum totals every balance entry.
func (b Balances) Sum() float64 {
	total := 0.0
	for _, v := range b {
		total += v
	}
	return total
}

// RoundDown truncates f to the given number of fractional decimal digits.
func RoundDown(f float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Floor(f*mult) / mult
}

// Round2 rounds f to two decimal digits, half away from zero.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Market binds a condition id to its two derived token ids. Token ids are
// computed once, at construction (internal/tokenid), and never mutate.
type Market struct {
	ConditionID string
	TokenIDs    map[Token]uint64
}

// NewMarket builds a Market given pre-derived token ids.
func NewMarket(conditionID string, tokenA, tokenB uint64) Market {
	return Market{
		ConditionID: conditionID,
		TokenIDs: map[Token]uint64{
			TokenA: tokenA,
			TokenB: tokenB,
		},
	}
}

// TokenID returns the derived id for the given outcome.
func (m Market) TokenID(t Token) uint64 {
	return m.TokenIDs[t]
}

// TokenFor returns which outcome a token id belongs to, if any.
func (m Market) TokenFor(tokenID uint64) (Token, bool) {
	for t, id := range m.TokenIDs {
		if id == tokenID {
			return t, true
		}
	}
	return 0, false
}

func (m Market) String() string {
	return fmt.Sprintf("Market[condition_id=%s, token_a=%d, token_b=%d]", m.ConditionID, m.TokenIDs[TokenA], m.TokenIDs[TokenB])
}
