package adapters

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"ctfmm/internal/metrics"
)

// GasStrategy selects how GasOracle.Price derives a gas price.
type GasStrategy string

const (
	GasFixed   GasStrategy = "fixed"
	GasStation GasStrategy = "station"
	GasWeb3    GasStrategy = "web3"
)

// defaultFixedGasPrice matches the source's constant: 10^11 wei.
const defaultFixedGasPrice = 100_000_000_000

// GasOracle implements the three gas-price strategies named in §2a/§6.
type GasOracle struct {
	strategy   GasStrategy
	fixedPrice *big.Int
	stationURL string
	http       *resty.Client
	metrics    *metrics.Registry
}

// NewGasOracle builds a GasOracle. fixedPrice defaults to
// defaultFixedGasPrice when zero.
func NewGasOracle(strategy GasStrategy, fixedPrice int64, stationURL string, reg *metrics.Registry) *GasOracle {
	if fixedPrice == 0 {
		fixedPrice = defaultFixedGasPrice
	}
	return &GasOracle{
		strategy:   strategy,
		fixedPrice: big.NewInt(fixedPrice),
		stationURL: stationURL,
		http:       resty.New().SetTimeout(5 * time.Second),
		metrics:    reg,
	}
}

// Price returns a gas price in wei. station falls back to the fixed price
// on any upstream failure; web3 always falls back to the fixed price
// (real RPC gas estimation is out of scope, matching the source).
func (g *GasOracle) Price(ctx context.Context) *big.Int {
	switch g.strategy {
	case GasStation:
		if price, err := g.fetchStationPrice(ctx); err == nil {
			return price
		}
		return g.fixedPrice
	case GasWeb3:
		return g.fixedPrice
	default:
		return g.fixedPrice
	}
}

func (g *GasOracle) fetchStationPrice(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	var result GasStationResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(g.stationURL)
	g.metrics.ObserveGasStationLatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("gas station request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gas station: status %d", resp.StatusCode())
	}

	// Gwei -> wei.
	scaled := new(big.Float).Mul(big.NewFloat(result.Fast), big.NewFloat(1e9))
	price, _ := scaled.Int(nil)
	return price, nil
}
