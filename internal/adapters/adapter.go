package adapters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"ctfmm/internal/metrics"
	"ctfmm/internal/model"
)

// ClobAdapter composes the CLOB REST client and the on-chain client into
// the orderbook.Adapter and strategy.PriceFeed contracts. It is the single
// collaborator both the manager and the strategy facade depend on.
type ClobAdapter struct {
	clob    *Client
	chain   *OnChain
	market  model.Market
	collateralToken common.Address
	tokenContract   common.Address
	funder  common.Address
	metrics *metrics.Registry
}

// NewClobAdapter builds a ClobAdapter for a single market.
func NewClobAdapter(clob *Client, chain *OnChain, market model.Market, collateralToken, tokenContract, funder common.Address, reg *metrics.Registry) *ClobAdapter {
	return &ClobAdapter{
		clob:            clob,
		chain:           chain,
		market:          market,
		collateralToken: collateralToken,
		tokenContract:   tokenContract,
		funder:          funder,
		metrics:         reg,
	}
}

// GetOrders satisfies orderbook.Adapter.
func (a *ClobAdapter) GetOrders(ctx context.Context) ([]model.Order, error) {
	raw, err := a.clob.GetOpenOrders(ctx, a.market.ConditionID)
	if err != nil {
		return nil, err
	}

	orders := make([]model.Order, 0, len(raw))
	for _, o := range raw {
		assetID, err := strconv.ParseUint(o.AssetID, 10, 64)
		if err != nil {
			continue
		}
		token, ok := a.market.TokenFor(assetID)
		if !ok {
			continue
		}
		side, err := model.ParseSide(o.Side)
		if err != nil {
			continue
		}

		original, _ := strconv.ParseFloat(o.OriginalSize, 64)
		matched, _ := strconv.ParseFloat(o.SizeMatched, 64)
		price, _ := strconv.ParseFloat(o.Price, 64)

		order := model.NewOrder(original-matched, price, side, token)
		order.ID = o.ID
		orders = append(orders, order)
	}
	return orders, nil
}

// GetBalances satisfies orderbook.Adapter.
func (a *ClobAdapter) GetBalances(ctx context.Context) (model.Balances, error) {
	collateral, err := a.chain.TokenBalanceOf(ctx, a.collateralToken, a.funder, nil)
	if err != nil {
		return nil, fmt.Errorf("collateral balance: %w", err)
	}
	tokenAID := a.market.TokenID(model.TokenA)
	tokenA, err := a.chain.TokenBalanceOf(ctx, a.tokenContract, a.funder, &tokenAID)
	if err != nil {
		return nil, fmt.Errorf("token a balance: %w", err)
	}
	tokenBID := a.market.TokenID(model.TokenB)
	tokenB, err := a.chain.TokenBalanceOf(ctx, a.tokenContract, a.funder, &tokenBID)
	if err != nil {
		return nil, fmt.Errorf("token b balance: %w", err)
	}

	a.metrics.SetBalance(model.Collateral, collateral)
	a.metrics.SetBalance(model.TokenKey(model.TokenA), tokenA)
	a.metrics.SetBalance(model.TokenKey(model.TokenB), tokenB)

	return model.Balances{
		model.Collateral:             collateral,
		model.TokenKey(model.TokenA): tokenA,
		model.TokenKey(model.TokenB): tokenB,
	}, nil
}

// PlaceOrder satisfies orderbook.Adapter.
func (a *ClobAdapter) PlaceOrder(ctx context.Context, intent model.Order) (string, error) {
	tokenID := strconv.FormatUint(a.market.TokenID(intent.Token), 10)
	results, err := a.clob.PostOrders(ctx, []model.Order{intent}, []string{tokenID})
	if err != nil {
		return "", err
	}
	if len(results) == 0 || !results[0].Success || results[0].OrderID == "" {
		msg := ""
		if len(results) > 0 {
			msg = results[0].ErrorMsg
		}
		return "", fmt.Errorf("place order rejected: %s", msg)
	}
	return results[0].OrderID, nil
}

// CancelOrder satisfies orderbook.Adapter. An empty id is vacuous success.
func (a *ClobAdapter) CancelOrder(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := a.clob.CancelOrdersByID(ctx, []string{id})
	return err
}

// CancelAllOrders satisfies orderbook.Adapter.
func (a *ClobAdapter) CancelAllOrders(ctx context.Context) error {
	_, err := a.clob.CancelAll(ctx)
	return err
}

// GetPrice satisfies strategy.PriceFeed: the CLOB midpoint for TokenA, with
// a randomized fallback on failure (§2a).
func (a *ClobAdapter) GetPrice(ctx context.Context) (float64, error) {
	tokenID := strconv.FormatUint(a.market.TokenID(model.TokenA), 10)
	mid, err := a.clob.GetMidpoint(ctx, tokenID)
	if err != nil {
		return randomizedFallbackPrice(), nil
	}
	return mid, nil
}
