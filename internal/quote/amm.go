// Package quote implements the two quoting schemes a keeper can run: a
// concentrated-liquidity AMM curve (amm.go) and a discrete margin-Bands
// scheme (bands.go).
package quote

import (
	"fmt"
	"math"

	"ctfmm/internal/model"
)

// AMMConfig parameterizes one AMM instance.
type AMMConfig struct {
	PMin          float64 `json:"p_min"`
	PMax          float64 `json:"p_max"`
	Spread        float64 `json:"spread"`
	Delta         float64 `json:"delta"`
	Depth         float64 `json:"depth"`
	MaxCollateral float64 `json:"max_collateral"`
}

// AMM is a concentrated-liquidity quoter for a single outcome token. It
// holds a price ladder computed the last time SetPrice was called.
type AMM struct {
	cfg AMMConfig

	pI float64 // current index price
	pU float64
	pL float64

	sellPrices []float64
	buyPrices  []float64
}

// NewAMM validates the configuration and constructs an AMM instance.
// depth <= spread is a fatal configuration error.
func NewAMM(cfg AMMConfig) (*AMM, error) {
	if cfg.Depth <= cfg.Spread {
		return nil, fmt.Errorf("amm config: depth (%v) must be greater than spread (%v)", cfg.Depth, cfg.Spread)
	}
	return &AMM{cfg: cfg}, nil
}

// SetPrice recomputes the price ladders around the given index price.
func (a *AMM) SetPrice(pI float64) {
	a.pI = pI
	a.pU = math.Min(pI+a.cfg.Depth, a.cfg.PMax)
	a.pL = math.Max(pI-a.cfg.Depth, a.cfg.PMin)

	a.sellPrices = a.sellPrices[:0]
	for p := pI + a.cfg.Spread; p <= a.pU+1e-9; p += a.cfg.Delta {
		a.sellPrices = append(a.sellPrices, model.Round2(p))
	}
	a.buyPrices = a.buyPrices[:0]
	for p := pI - a.cfg.Spread; p >= a.pL-1e-9; p -= a.cfg.Delta {
		a.buyPrices = append(a.buyPrices, model.Round2(p))
	}
}

// SellPrices returns the current sell-side ladder (ascending).
func (a *AMM) SellPrices() []float64 { return append([]float64{}, a.sellPrices...) }

// BuyPrices returns the current buy-side ladder (descending).
func (a *AMM) BuyPrices() []float64 { return append([]float64{}, a.buyPrices...) }

// sellSize is the cumulative sell size at ladder price pT given inventory x.
func sellSize(x, pI, pT, pU float64) float64 {
	l := x / (1/math.Sqrt(pI) - 1/math.Sqrt(pU))
	return l/math.Sqrt(pU) - l/math.Sqrt(pT) + x
}

// buySize is the cumulative buy size at ladder price pT given collateral y.
func buySize(y, pI, pT, pL float64) float64 {
	l := y / (math.Sqrt(pI) - math.Sqrt(pL))
	return l * (1/math.Sqrt(pT) - 1/math.Sqrt(pI))
}

// diff first-differences a cumulative series: level 0 keeps its own value,
// subsequent levels become the delta from the previous cumulative value.
func diff(cum []float64) []float64 {
	out := make([]float64, len(cum))
	prev := 0.0
	for i, v := range cum {
		if i == 0 {
			out[i] = v
		} else {
			out[i] = v - prev
		}
		prev = v
	}
	return out
}

// GetSellOrders returns the per-level sell sizes for outcome-token
// inventory x, each floored to model.MaxDecimals.
func (a *AMM) GetSellOrders(x float64) []float64 {
	cum := make([]float64, len(a.sellPrices))
	for i, pT := range a.sellPrices {
		cum[i] = sellSize(x, a.pI, pT, a.pU)
	}
	sizes := diff(cum)
	for i, s := range sizes {
		sizes[i] = model.RoundDown(s, model.MaxDecimals)
	}
	return sizes
}

// GetBuyOrders returns the per-level buy sizes for collateral y, each
// floored to model.MaxDecimals.
func (a *AMM) GetBuyOrders(y float64) []float64 {
	cum := make([]float64, len(a.buyPrices))
	for i, pT := range a.buyPrices {
		cum[i] = buySize(y, a.pI, pT, a.pL)
	}
	sizes := diff(cum)
	for i, s := range sizes {
		sizes[i] = model.RoundDown(s, model.MaxDecimals)
	}
	return sizes
}

// Phi is the scaling factor used to split collateral between the two
// tokens' AMM instances: φ = (1/√p_i − 1/√p_u)⁻¹ · (1/√first_buy_price − 1/√p_i).
func (a *AMM) Phi() float64 {
	if len(a.buyPrices) == 0 {
		return 0
	}
	firstBuy := a.buyPrices[0]
	denom := 1/math.Sqrt(a.pI) - 1/math.Sqrt(a.pU)
	if denom == 0 {
		return 0
	}
	return (1 / denom) * (1/math.Sqrt(firstBuy) - 1/math.Sqrt(a.pI))
}

// AMMManager owns one AMM per outcome token and allocates available
// collateral between them.
type AMMManager struct {
	ammA, ammB   *AMM
	maxCollateral float64
}

// NewAMMManager builds an AMMManager from a single shared configuration
// (both tokens use the same curve shape, only the index price differs).
func NewAMMManager(cfg AMMConfig) (*AMMManager, error) {
	ammA, err := NewAMM(cfg)
	if err != nil {
		return nil, err
	}
	ammB, err := NewAMM(cfg)
	if err != nil {
		return nil, err
	}
	return &AMMManager{ammA: ammA, ammB: ammB, maxCollateral: cfg.MaxCollateral}, nil
}

// GetExpectedOrders computes the full four-ladder order set (sells for A
// and B from inventory, buys for A and B from allocated collateral) given
// per-token target prices and the current balance snapshot.
func (m *AMMManager) GetExpectedOrders(targetPrices map[model.Token]float64, balances model.Balances) []model.Order {
	m.ammA.SetPrice(targetPrices[model.TokenA])
	m.ammB.SetPrice(targetPrices[model.TokenB])

	sellA := m.ammA.GetSellOrders(balances[model.TokenKey(model.TokenA)])
	sellB := m.ammB.GetSellOrders(balances[model.TokenKey(model.TokenB)])

	bestSellA := 0.0
	if len(sellA) > 0 {
		bestSellA = sellA[0]
	}
	bestSellB := 0.0
	if len(sellB) > 0 {
		bestSellB = sellB[0]
	}

	phiA := m.ammA.Phi()
	phiB := m.ammB.Phi()

	c := math.Min(balances[model.Collateral], m.maxCollateral)

	allocA := c / 2
	if phiA+phiB != 0 {
		allocA = (bestSellA - bestSellB + c*phiB) / (phiA + phiB)
	}
	if allocA < 0 {
		allocA = 0
	}
	if allocA > c {
		allocA = c
	}
	allocA = model.RoundDown(allocA, model.MaxDecimals)
	allocB := model.RoundDown(c-allocA, model.MaxDecimals)

	buyA := m.ammA.GetBuyOrders(allocA)
	buyB := m.ammB.GetBuyOrders(allocB)

	var out []model.Order
	out = append(out, buildOrders(sellA, m.ammA.SellPrices(), model.Sell, model.TokenA)...)
	out = append(out, buildOrders(sellB, m.ammB.SellPrices(), model.Sell, model.TokenB)...)
	out = append(out, buildOrders(buyA, m.ammA.BuyPrices(), model.Buy, model.TokenA)...)
	out = append(out, buildOrders(buyB, m.ammB.BuyPrices(), model.Buy, model.TokenB)...)
	return out
}

func buildOrders(sizes, prices []float64, side model.Side, token model.Token) []model.Order {
	out := make([]model.Order, 0, len(sizes))
	for i, sz := range sizes {
		if sz <= 0 {
			continue
		}
		out = append(out, model.NewOrder(sz, prices[i], side, token))
	}
	return out
}
