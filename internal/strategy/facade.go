// Package strategy is the facade that turns an order-book snapshot plus a
// reference price into a cancel/place diff. It owns no transport and no
// concurrency of its own — synchronize is a pure function of its inputs
// (aside from the price feed call), matching the teacher's
// maker.go tick/reconcile shape with the Avellaneda-Stoikov pricing body
// replaced by the AMM/Bands quoters.
package strategy

import (
	"context"
	"fmt"

	"ctfmm/internal/model"
	"ctfmm/internal/orderbook"
	"ctfmm/internal/quote"
)

// PriceFeed supplies the reference price for TokenA; TokenB is always
// derived as 1 - price.
type PriceFeed interface {
	GetPrice(ctx context.Context) (float64, error)
}

// Kind selects which quoter a Facade runs.
type Kind int

const (
	KindAMM Kind = iota
	KindBands
)

// Facade dispatches synchronize to the configured quoter.
type Facade struct {
	kind    Kind
	feed    PriceFeed
	ammMgr  *quote.AMMManager
	bands   *quote.Bands
	minSize float64
}

// NewAMMFacade builds a Facade that runs the AMM quoter.
func NewAMMFacade(feed PriceFeed, mgr *quote.AMMManager) *Facade {
	return &Facade{kind: KindAMM, feed: feed, ammMgr: mgr}
}

// NewBandsFacade builds a Facade that runs the Bands quoter. Bands is
// two-sided by construction: synchronize runs once per outcome token,
// treating each in turn as the buy-side token (its complement is the
// sell side, via reflection around 0.5), mirroring the Rust reference's
// `for token in [Token::A, Token::B]` loop.
func NewBandsFacade(feed PriceFeed, bands *quote.Bands, minSize float64) *Facade {
	return &Facade{kind: KindBands, feed: feed, bands: bands, minSize: minSize}
}

// Synchronize computes the cancel/place diff for the current snapshot.
func (f *Facade) Synchronize(ctx context.Context, snap orderbook.Snapshot) (toCancel, toPlace []model.Order, err error) {
	if snap.Balances.AnyZero() || snap.Balances.Sum() == 0 {
		return nil, nil, fmt.Errorf("zero balances")
	}

	rawPA, err := f.feed.GetPrice(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get price: %w", err)
	}
	pA := model.Round2(rawPA)
	pB := model.Round2(1 - pA)

	switch f.kind {
	case KindAMM:
		return f.synchronizeAMM(snap, pA, pB)
	case KindBands:
		return f.synchronizeBands(snap, pA, pB)
	default:
		return nil, nil, fmt.Errorf("strategy: unknown kind %d", f.kind)
	}
}

type bucketKey struct {
	price float64
	side  model.Side
	token model.Token
}

func keyOf(o model.Order) bucketKey {
	price, _ := o.Price.Float64()
	return bucketKey{price: price, side: o.Side, token: o.Token}
}

func (f *Facade) synchronizeAMM(snap orderbook.Snapshot, pA, pB float64) (toCancel, toPlace []model.Order, err error) {
	expected := f.ammMgr.GetExpectedOrders(map[model.Token]float64{
		model.TokenA: pA,
		model.TokenB: pB,
	}, snap.Balances)

	expectedBuckets := make(map[bucketKey]float64, len(expected))
	expectedSample := make(map[bucketKey]model.Order, len(expected))
	for _, o := range expected {
		k := keyOf(o)
		sz, _ := o.Size.Float64()
		expectedBuckets[k] += sz
		expectedSample[k] = o
	}

	openBuckets := make(map[bucketKey]float64)
	openOrders := make(map[bucketKey][]model.Order)
	for _, o := range snap.Orders {
		k := keyOf(o)
		sz, _ := o.Size.Float64()
		openBuckets[k] += sz
		openOrders[k] = append(openOrders[k], o)
	}

	for k, expectedSize := range expectedBuckets {
		openSize := openBuckets[k]
		switch {
		case openSize > expectedSize:
			toCancel = append(toCancel, openOrders[k]...)
			toPlace = append(toPlace, expectedSample[k])
		case openSize < expectedSize:
			sample := expectedSample[k]
			deficit := model.RoundDown(expectedSize-openSize, model.MaxDecimals)
			if deficit > 0 {
				toPlace = append(toPlace, model.NewOrder(deficit, sample.Price64(), sample.Side, sample.Token))
			}
		}
	}

	for k, orders := range openOrders {
		if _, ok := expectedBuckets[k]; !ok {
			toCancel = append(toCancel, orders...)
		}
	}

	return toCancel, toPlace, nil
}

// ordersByCorrespondingBuyToken returns the subset of orders that belong to
// buyToken's pass: its own buys, plus sells of its complement (the sell side
// of the same two-sided quote). Every order belongs to exactly one of the
// two tokens' subsets.
func ordersByCorrespondingBuyToken(orders []model.Order, buyToken model.Token) []model.Order {
	var out []model.Order
	for _, o := range orders {
		if (o.Side == model.Buy && o.Token == buyToken) || (o.Side == model.Sell && o.Token != buyToken) {
			out = append(out, o)
		}
	}
	return out
}

// synchronizeBands runs the Bands quoter once per outcome token (mirroring
// the Rust reference's `for token in [Token::A, Token::B]`), each against
// its own corresponding-buy-token order subset and target price, and
// threads a single running free-collateral budget across both passes.
func (f *Facade) synchronizeBands(snap orderbook.Snapshot, pA, pB float64) (toCancel, toPlace []model.Order, err error) {
	targets := map[model.Token]float64{model.TokenA: pA, model.TokenB: pB}
	tokens := [2]model.Token{model.TokenA, model.TokenB}

	for _, token := range tokens {
		subset := ordersByCorrespondingBuyToken(snap.Orders, token)
		toCancel = append(toCancel, f.bands.CancellableOrders(subset, targets[token])...)
	}

	cancelled := make(map[string]bool, len(toCancel))
	for _, o := range toCancel {
		if o.ID != "" {
			cancelled[o.ID] = true
		}
	}

	var survivors []model.Order
	lockedByOpenBuys := 0.0
	for _, o := range snap.Orders {
		if o.ID != "" && cancelled[o.ID] {
			continue
		}
		survivors = append(survivors, o)
		if o.Side == model.Buy {
			lockedByOpenBuys += o.Size64() * o.Price64()
		}
	}
	freeCollateral := snap.Balances[model.Collateral] - lockedByOpenBuys

	for _, token := range tokens {
		subset := ordersByCorrespondingBuyToken(survivors, token)

		lockedByOpenSells := 0.0
		for _, o := range subset {
			if o.Side == model.Sell {
				lockedByOpenSells += o.Size64()
			}
		}
		freeTokenBalance := snap.Balances[model.TokenKey(token.Complement())] - lockedByOpenSells

		newOrders, remaining := f.bands.NewOrders(subset, freeCollateral, freeTokenBalance, targets[token], token)
		freeCollateral = remaining
		toPlace = append(toPlace, newOrders...)
	}

	return toCancel, toPlace, nil
}
