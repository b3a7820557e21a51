package adapters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ctfmm/internal/model"
)

func testMarket() model.Market {
	return model.NewMarket("0xcond", 111, 222)
}

func TestClobAdapterGetOrdersParsesAndResolvesToken(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]OpenOrder{
			{ID: "o1", AssetID: "111", Side: "BUY", OriginalSize: "10", SizeMatched: "2", Price: "0.5"},
			{ID: "o2", AssetID: "999", Side: "BUY", OriginalSize: "10", SizeMatched: "0", Price: "0.5"}, // unknown token, dropped
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	adapter := NewClobAdapter(c, nil, testMarket(), common.Address{}, common.Address{}, common.Address{}, testRegistry())

	orders, err := adapter.GetOrders(newTestCtx())
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 resolvable order, got %d: %+v", len(orders), orders)
	}
	if orders[0].Token != model.TokenA {
		t.Errorf("order token = %v, want TokenA", orders[0].Token)
	}
	if orders[0].Size64() != 8 {
		t.Errorf("order size = %v, want 8 (original 10 - matched 2)", orders[0].Size64())
	}
}

func TestClobAdapterPlaceOrderDryRun(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://127.0.0.1:0", true)
	adapter := NewClobAdapter(c, nil, testMarket(), common.Address{}, common.Address{}, common.Address{}, testRegistry())

	id, err := adapter.PlaceOrder(newTestCtx(), model.NewOrder(10, 0.5, model.Buy, model.TokenA))
	if err != nil {
		t.Fatalf("PlaceOrder dry-run: %v", err)
	}
	if id == "" {
		t.Error("expected a non-empty synthetic order id in dry-run mode")
	}
}

func TestClobAdapterCancelOrderEmptyIDIsNoOp(t *testing.T) {
	t.Parallel()
	c := testClient(t, "http://127.0.0.1:0", false)
	adapter := NewClobAdapter(c, nil, testMarket(), common.Address{}, common.Address{}, common.Address{}, testRegistry())

	if err := adapter.CancelOrder(newTestCtx(), ""); err != nil {
		t.Errorf("CancelOrder with empty id should be a vacuous success, got %v", err)
	}
}

func TestClobAdapterGetPriceFallsBackOnMidpointFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, false)
	adapter := NewClobAdapter(c, nil, testMarket(), common.Address{}, common.Address{}, common.Address{}, testRegistry())

	price, err := adapter.GetPrice(newTestCtx())
	if err != nil {
		t.Fatalf("GetPrice should not error, it falls back: %v", err)
	}
	if price < 0.4 || price > 0.6 {
		t.Errorf("fallback price %v outside expected [0.4, 0.6] range", price)
	}
}
