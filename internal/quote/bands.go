package quote

import (
	"fmt"
	"math"
	"sort"

	"ctfmm/internal/model"
)

// BandConfig is one margin band around a target price.
type BandConfig struct {
	MinMargin float64
	AvgMargin float64
	MaxMargin float64
	MinAmount float64
	AvgAmount float64
	MaxAmount float64
}

// Band is a validated BandConfig plus the derived price boundaries, which
// depend on the target price and are recomputed on demand.
type Band struct {
	cfg BandConfig
}

// NewBand validates a single band's invariants: amounts non-negative and
// monotonic, margins monotonic with min < max. Violations are fatal at
// construction.
func NewBand(cfg BandConfig) (Band, error) {
	if cfg.MinAmount < 0 || cfg.MinAmount > cfg.AvgAmount || cfg.AvgAmount > cfg.MaxAmount {
		return Band{}, fmt.Errorf("band: amounts must satisfy 0 <= min <= avg <= max, got min=%v avg=%v max=%v",
			cfg.MinAmount, cfg.AvgAmount, cfg.MaxAmount)
	}
	if cfg.MinMargin > cfg.AvgMargin || cfg.AvgMargin > cfg.MaxMargin || cfg.MinMargin >= cfg.MaxMargin {
		return Band{}, fmt.Errorf("band: margins must satisfy min <= avg <= max and min < max, got min=%v avg=%v max=%v",
			cfg.MinMargin, cfg.AvgMargin, cfg.MaxMargin)
	}
	return Band{cfg: cfg}, nil
}

func applyMargin(price, margin float64) float64 {
	return model.RoundDown(price-margin, model.MaxDecimals)
}

func (b Band) minPrice(target float64) float64 { return applyMargin(target, b.cfg.MaxMargin) }
func (b Band) maxPrice(target float64) float64 { return applyMargin(target, b.cfg.MinMargin) }
func (b Band) buyPrice(target float64) float64 { return applyMargin(target, b.cfg.AvgMargin) }
func (b Band) sellPrice(target float64) float64 {
	return applyMargin(1-target, -b.cfg.AvgMargin)
}

// includes reports whether order falls within this band, evaluated at the
// given target price. Sell orders are reflected around 0.5 before the
// comparison. The range is (minPrice, maxPrice].
func (b Band) includes(o model.Order, target float64) bool {
	price, _ := o.Price.Float64()
	if o.Side == model.Sell {
		price = model.RoundDown(1-price, model.MaxDecimals)
	}
	return price > b.minPrice(target) && price <= b.maxPrice(target)
}

// Bands is a validated, non-overlapping sequence of Band, plus the minimum
// order size below which new_orders will not emit.
type Bands struct {
	bands   []Band
	minSize float64
}

// NewBands validates pairwise non-overlap across the band sequence and
// returns a Bands instance. Overlap is fatal at construction.
func NewBands(cfgs []BandConfig, minSize float64) (*Bands, error) {
	bands := make([]Band, 0, len(cfgs))
	for _, cfg := range cfgs {
		b, err := NewBand(cfg)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	for i := 0; i < len(bands); i++ {
		for j := i + 1; j < len(bands); j++ {
			bi, bj := bands[i].cfg, bands[j].cfg
			if bi.MinMargin < bj.MaxMargin && bj.MinMargin < bi.MaxMargin {
				return nil, fmt.Errorf("bands: band %d and band %d overlap", i, j)
			}
		}
	}
	return &Bands{bands: bands, minSize: minSize}, nil
}

// calculateVirtualBands filters the configured bands down to those that are
// meaningful at the given target price. Returns nil if target <= 0. A band
// whose max or buy price is non-positive at this target is skipped (the
// open question left unresolved in the source — see DESIGN.md).
func (bs *Bands) calculateVirtualBands(target float64) []Band {
	if target <= 0 {
		return nil
	}
	var out []Band
	for _, b := range bs.bands {
		if b.maxPrice(target) > 0 && b.buyPrice(target) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func distance(price, target float64) float64 {
	return math.Abs(price - target)
}

func orderPriceFloat(o model.Order) float64 {
	f, _ := o.Price.Float64()
	return f
}

func orderSizeFloat(o model.Order) float64 {
	f, _ := o.Size.Float64()
	return f
}

// excessiveOrders sorts orders-in-band by the rule appropriate to the
// band's position (first/last/interior) and evicts from the
// least-important-to-keep end until the aggregate size fits max_amount.
func excessiveOrders(inBand []model.Order, target float64, isFirst, isLast bool, maxAmount float64) []model.Order {
	total := 0.0
	for _, o := range inBand {
		total += orderSizeFloat(o)
	}
	if total <= maxAmount {
		return nil
	}

	sorted := append([]model.Order{}, inBand...)
	switch {
	case isFirst:
		// descending distance from target: farthest first, nearest last
		sort.SliceStable(sorted, func(i, j int) bool {
			return distance(orderPriceFloat(sorted[i]), target) > distance(orderPriceFloat(sorted[j]), target)
		})
	case isLast:
		// ascending distance from target: nearest first, farthest last
		sort.SliceStable(sorted, func(i, j int) bool {
			return distance(orderPriceFloat(sorted[i]), target) < distance(orderPriceFloat(sorted[j]), target)
		})
	default:
		// ascending size: smallest first, largest last
		sort.SliceStable(sorted, func(i, j int) bool {
			return orderSizeFloat(sorted[i]) < orderSizeFloat(sorted[j])
		})
	}

	var cancelled []model.Order
	for total > maxAmount && len(sorted) > 0 {
		last := sorted[len(sorted)-1]
		sorted = sorted[:len(sorted)-1]
		total -= orderSizeFloat(last)
		cancelled = append(cancelled, last)
	}
	return cancelled
}

// CancellableOrders returns the subset of orders that should be cancelled:
// per-band excess beyond max_amount, plus any order that falls in no band
// at all. If target <= 0, every order is cancellable.
func (bs *Bands) CancellableOrders(orders []model.Order, target float64) []model.Order {
	if target <= 0 {
		return append([]model.Order{}, orders...)
	}

	virtual := bs.calculateVirtualBands(target)
	matched := make([]bool, len(orders))
	var cancellable []model.Order

	for bi, band := range virtual {
		isFirst := bi == 0
		isLast := bi == len(virtual)-1

		var inBand []model.Order
		for i, o := range orders {
			if band.includes(o, target) {
				inBand = append(inBand, o)
				matched[i] = true
			}
		}

		excessive := excessiveOrders(inBand, target, isFirst, isLast, band.cfg.MaxAmount)
		cancellable = append(cancellable, excessive...)
	}

	for i, o := range orders {
		if !matched[i] {
			cancellable = append(cancellable, o)
		}
	}
	return cancellable
}

// NewOrders mints replenishment orders for under-filled bands. orders is
// the surviving (post-cancel) set already restricted to the
// corresponding-buy-token grouping for buyToken. freeCollateral and
// freeTokenBalance are the balances not already locked by surviving orders.
// Returns the new orders plus the free-collateral budget remaining after
// accounting for their consumption (only buys consume collateral, per
// spec's literal text).
func (bs *Bands) NewOrders(orders []model.Order, freeCollateral, freeTokenBalance, target float64, buyToken model.Token) ([]model.Order, float64) {
	sellToken := buyToken.Complement()
	virtual := bs.calculateVirtualBands(target)

	var result []model.Order
	fc := freeCollateral

	for _, band := range virtual {
		current := 0.0
		for _, o := range orders {
			if band.includes(o, target) {
				current += orderSizeFloat(o)
			}
		}
		if current >= band.cfg.MinAmount {
			continue
		}
		deficit := band.cfg.AvgAmount - current

		sellPrice := band.sellPrice(target)
		sellSize := model.RoundDown(math.Min(deficit, freeTokenBalance), model.MaxDecimals)
		if sellPrice > 0 && sellPrice < 1 && sellSize >= bs.minSize {
			result = append(result, model.NewOrder(sellSize, sellPrice, model.Sell, sellToken))
		}

		buyPrice := band.buyPrice(target)
		buySize := 0.0
		if buyPrice > 0 {
			buySize = model.RoundDown(math.Min(deficit, fc/buyPrice), model.MaxDecimals)
		}
		if buyPrice > 0 && buyPrice < 1 && buySize >= bs.minSize {
			result = append(result, model.NewOrder(buySize, buyPrice, model.Buy, buyToken))
			fc -= buySize * buyPrice
		}
	}

	return result, fc
}
