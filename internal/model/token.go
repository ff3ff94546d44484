package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress is the placeholder address catalogs use for the chain's own coin.
var NativeAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Token is a catalog entry.
type Token struct {
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	LogoURI  string         `json:"logo_uri,omitempty"`
}

// IsNative reports whether the token stands for the chain's coin rather than an ERC-20.
func (t Token) IsNative() bool {
	return t.Address == NativeAddress
}

// Same compares tokens by address.
func (t Token) Same(other Token) bool {
	return t.Address == other.Address
}

// Is matches a symbol or a hex address, ignoring case.
func (t Token) Is(ref string) bool {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref) == t.Address
	}
	return strings.EqualFold(ref, t.Symbol)
}
