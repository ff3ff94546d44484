package tokens

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"swapPilot/internal/model"
)

// Sepolia deployment of the V3 periphery this client trades against.
var (
	SepoliaChainID = int64(11155111)
	SepoliaFactory = common.HexToAddress("0x0227628f3F023bb0B980b67D528571c95c6DaC1c")
	SepoliaRouter  = common.HexToAddress("0xE6DC9225E4C76f9c0b002Ab2782F687e35cc7666")
	SepoliaWETH    = common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")
	SepoliaUSDC    = common.HexToAddress("0x1C7D4B196cB0c7B01D743FBC6116a902379C7a90")
)

// Sepolia returns the built-in token list.
func Sepolia() []model.Token {
	return []model.Token{
		{Symbol: "ETH", Name: "Ether", Address: model.NativeAddress, Decimals: 18},
		{Symbol: "WETH", Name: "Wrapped Ether", Address: SepoliaWETH, Decimals: 18},
		{Symbol: "USDC", Name: "USD Coin", Address: SepoliaUSDC, Decimals: 6},
	}
}

// Builtin is a Source serving the built-in list.
type Builtin struct{}

func (Builtin) Load(context.Context) ([]model.Token, error) {
	return Sepolia(), nil
}
