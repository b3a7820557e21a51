package adapters

import "math/big"

// SignedOrder is the on-chain order format the CLOB API expects. Amounts are
// in 6-decimal USDC units (1e6 = $1).
type SignedOrder struct {
	Salt          string   `json:"salt"`
	Maker         string   `json:"maker"`
	Signer        string   `json:"signer"`
	Taker         string   `json:"taker"`
	TokenID       string   `json:"tokenId"`
	MakerAmount   *big.Int `json:"makerAmount"`
	TakerAmount   *big.Int `json:"takerAmount"`
	Side          string   `json:"side"`
	Expiration    string   `json:"expiration"`
	Nonce         string   `json:"nonce"`
	FeeRateBps    string   `json:"feeRateBps"`
	SignatureType int      `json:"signatureType"`
	Signature     string   `json:"signature"`
}

// OrderPayload is the request body for POST /orders.
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"`
}

// OrderResponse is one element of the POST /orders response.
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// OpenOrder is a live resting order as the CLOB reports it.
type OpenOrder struct {
	ID           string `json:"id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
}

// CancelResponse is returned by DELETE /orders, /cancel-all.
type CancelResponse struct {
	Canceled []string `json:"canceled"`
}

// BookResponse is the GET /book response: top-of-book bid/ask for a token.
type BookResponse struct {
	Market string      `json:"market"`
	AssetID string     `json:"asset_id"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// PriceLevel is one level of a book side.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MidpointResponse is the GET /midpoint response.
type MidpointResponse struct {
	Mid string `json:"mid"`
}

// GasStationResponse is the subset of an upstream gas-station JSON payload
// the keeper cares about.
type GasStationResponse struct {
	Fast float64 `json:"fast"`
}
