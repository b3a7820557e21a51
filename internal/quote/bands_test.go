package quote

import (
	"testing"

	"ctfmm/internal/model"
)

func tightBand() BandConfig {
	return BandConfig{
		MinMargin: 0.0,
		AvgMargin: 0.02,
		MaxMargin: 0.05,
		MinAmount: 10,
		AvgAmount: 20,
		MaxAmount: 30,
	}
}

func wideBand() BandConfig {
	return BandConfig{
		MinMargin: 0.05,
		AvgMargin: 0.08,
		MaxMargin: 0.12,
		MinAmount: 10,
		AvgAmount: 20,
		MaxAmount: 30,
	}
}

func TestNewBandRejectsBadAmounts(t *testing.T) {
	t.Parallel()
	cfg := tightBand()
	cfg.MinAmount = 25 // > AvgAmount
	if _, err := NewBand(cfg); err == nil {
		t.Error("NewBand should reject min > avg amount")
	}
}

func TestNewBandRejectsBadMargins(t *testing.T) {
	t.Parallel()
	cfg := tightBand()
	cfg.MinMargin = cfg.MaxMargin
	if _, err := NewBand(cfg); err == nil {
		t.Error("NewBand should reject min margin >= max margin")
	}
}

func TestNewBandsRejectsOverlap(t *testing.T) {
	t.Parallel()
	overlapping := BandConfig{
		MinMargin: 0.01,
		AvgMargin: 0.03,
		MaxMargin: 0.06,
		MinAmount: 10,
		AvgAmount: 20,
		MaxAmount: 30,
	}
	_, err := NewBands([]BandConfig{tightBand(), overlapping}, 1)
	if err == nil {
		t.Error("NewBands should reject overlapping margin ranges")
	}
}

func TestNewBandsAcceptsNonOverlapping(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand(), wideBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	if bands == nil {
		t.Fatal("NewBands returned nil")
	}
}

func TestBandIncludesReflectsSellSide(t *testing.T) {
	t.Parallel()
	b, err := NewBand(tightBand())
	if err != nil {
		t.Fatalf("NewBand: %v", err)
	}
	target := 0.5

	buyInBand := model.NewOrder(10, 0.48, model.Buy, model.TokenA)
	if !b.includes(buyInBand, target) {
		t.Error("buy order at 0.48 should be within the tight band around 0.5")
	}

	// A sell at 0.52 reflects to 0.48, which is within the same band.
	sellInBand := model.NewOrder(10, 0.52, model.Sell, model.TokenA)
	if !b.includes(sellInBand, target) {
		t.Error("sell order at 0.52 should reflect to 0.48 and be within the band")
	}

	farOut := model.NewOrder(10, 0.2, model.Buy, model.TokenA)
	if b.includes(farOut, target) {
		t.Error("order far outside margin range should not be included")
	}
}

func TestCancellableOrdersAllWhenTargetNonPositive(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	orders := []model.Order{
		model.NewOrder(10, 0.48, model.Buy, model.TokenA),
		model.NewOrder(10, 0.49, model.Buy, model.TokenA),
	}
	got := bands.CancellableOrders(orders, 0)
	if len(got) != len(orders) {
		t.Errorf("CancellableOrders with target<=0 = %d orders, want all %d cancelled", len(got), len(orders))
	}
}

func TestCancellableOrdersUnmatchedOrderIsCancellable(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	// 0.2 falls well outside the tight band around 0.5.
	orders := []model.Order{model.NewOrder(10, 0.2, model.Buy, model.TokenA)}
	got := bands.CancellableOrders(orders, 0.5)
	if len(got) != 1 {
		t.Errorf("expected the out-of-band order to be cancellable, got %d cancellable orders", len(got))
	}
}

func TestCancellableOrdersEvictsExcessOverMax(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	// Three orders of size 15 each = 45 total, over MaxAmount of 30.
	orders := []model.Order{
		model.NewOrder(15, 0.48, model.Buy, model.TokenA),
		model.NewOrder(15, 0.485, model.Buy, model.TokenA),
		model.NewOrder(15, 0.49, model.Buy, model.TokenA),
	}
	got := bands.CancellableOrders(orders, 0.5)
	if len(got) == 0 {
		t.Error("expected some orders to be cancelled when total exceeds max_amount")
	}
}

func TestCancellableOrdersKeepsWithinMax(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	orders := []model.Order{
		model.NewOrder(10, 0.48, model.Buy, model.TokenA),
	}
	got := bands.CancellableOrders(orders, 0.5)
	if len(got) != 0 {
		t.Errorf("expected no cancellations when total is under max_amount, got %d", len(got))
	}
}

func TestNewOrdersMintsUpToDeficitAndDecrementsCollateral(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}

	freeCollateral := 100.0
	freeTokenBalance := 100.0
	orders, remaining := bands.NewOrders(nil, freeCollateral, freeTokenBalance, 0.5, model.TokenA)

	if len(orders) == 0 {
		t.Fatal("expected NewOrders to mint replenishment orders for an empty band")
	}

	spent := 0.0
	for _, o := range orders {
		if o.Side == model.Buy {
			spent += o.Size64() * o.Price64()
		}
		if o.Size64() < bands.minSize {
			t.Errorf("minted order size %v below minSize %v", o.Size64(), bands.minSize)
		}
	}
	if remaining != freeCollateral-spent {
		t.Errorf("remaining free collateral = %v, want %v", remaining, freeCollateral-spent)
	}
}

func TestNewOrdersSkipsBandAlreadyAtMin(t *testing.T) {
	t.Parallel()
	bands, err := NewBands([]BandConfig{tightBand()}, 1)
	if err != nil {
		t.Fatalf("NewBands: %v", err)
	}
	// An existing buy order within the band already at MinAmount (10).
	existing := []model.Order{
		model.NewOrder(10, 0.48, model.Buy, model.TokenA),
	}
	orders, remaining := bands.NewOrders(existing, 100, 100, 0.5, model.TokenA)
	for _, o := range orders {
		if o.Side == model.Buy {
			t.Error("band already meeting MinAmount should not receive a new buy order")
		}
	}
	if remaining != 100 {
		t.Errorf("remaining collateral should be untouched when no buy is minted, got %v", remaining)
	}
}
