package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"ctfmm/internal/metrics"
)

const usdcDecimalsScale = 1e6

var (
	erc20ABI, _   = abi.JSON(strings.NewReader(erc20ABIJSON))
	erc1155ABI, _ = abi.JSON(strings.NewReader(erc1155ABIJSON))
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const erc1155ABIJSON = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"name":"setApprovalForAll","outputs":[],"type":"function"}
]`

// maxUint256 is the unlimited-allowance sentinel used by max_approve_*.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// OnChain is the on-chain collaborator named by §6: native and outcome-token
// balance reads, and unlimited-allowance approvals for the exchange
// contract.
type OnChain struct {
	client  *ethclient.Client
	signer  *Auth
	metrics *metrics.Registry
}

// NewOnChain dials the configured RPC endpoint.
func NewOnChain(ctx context.Context, rpcURL string, signer *Auth, reg *metrics.Registry) (*OnChain, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &OnChain{client: client, signer: signer, metrics: reg}, nil
}

// GasBalance reads the native-token balance for an address, in whole ether
// units.
func (o *OnChain) GasBalance(ctx context.Context, address common.Address) float64 {
	o.metrics.IncChainRequests()
	balance, err := o.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return 0
	}
	f := new(big.Float).SetInt(balance)
	f.Quo(f, big.NewFloat(1e18))
	v, _ := f.Float64()
	return v
}

// TokenBalanceOf reads an ERC-20 balance when tokenID is nil, or an
// ERC-1155 balance for tokenID otherwise.
func (o *OnChain) TokenBalanceOf(ctx context.Context, token, owner common.Address, tokenID *uint64) (float64, error) {
	o.metrics.IncChainRequests()
	if tokenID == nil {
		return o.balanceOfERC20(ctx, token, owner)
	}
	return o.balanceOfERC1155(ctx, token, owner, *tokenID)
}

func (o *OnChain) balanceOfERC20(ctx context.Context, token, owner common.Address) (float64, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return 0, fmt.Errorf("pack balanceOf: %w", err)
	}
	result, err := o.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call balanceOf: %w", err)
	}
	raw := new(big.Int).SetBytes(result)
	f := new(big.Float).SetInt(raw)
	f.Quo(f, big.NewFloat(usdcDecimalsScale))
	v, _ := f.Float64()
	return v, nil
}

func (o *OnChain) balanceOfERC1155(ctx context.Context, token, owner common.Address, tokenID uint64) (float64, error) {
	data, err := erc1155ABI.Pack("balanceOf", owner, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return 0, fmt.Errorf("pack balanceOf: %w", err)
	}
	result, err := o.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call balanceOf: %w", err)
	}
	raw := new(big.Int).SetBytes(result)
	f := new(big.Float).SetInt(raw)
	f.Quo(f, big.NewFloat(usdcDecimalsScale))
	v, _ := f.Float64()
	return v, nil
}

// MaxApproveERC20 submits an unlimited-allowance approve transaction.
func (o *OnChain) MaxApproveERC20(ctx context.Context, token, spender common.Address, gasPrice *big.Int) (common.Hash, error) {
	data, err := erc20ABI.Pack("approve", spender, maxUint256)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	return o.sendApproval(ctx, token, data, gasPrice)
}

// MaxApproveERC1155 submits a setApprovalForAll(true) transaction.
func (o *OnChain) MaxApproveERC1155(ctx context.Context, token, spender common.Address, gasPrice *big.Int) (common.Hash, error) {
	data, err := erc1155ABI.Pack("setApprovalForAll", spender, true)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack setApprovalForAll: %w", err)
	}
	return o.sendApproval(ctx, token, data, gasPrice)
}

func (o *OnChain) sendApproval(ctx context.Context, token common.Address, data []byte, gasPrice *big.Int) (common.Hash, error) {
	nonce, err := o.client.PendingNonceAt(ctx, o.signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      100000,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(o.signer.ChainID()), o.signer.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	o.metrics.IncChainRequests()
	if err := o.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash(), nil
}
