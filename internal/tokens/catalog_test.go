package tokens

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"swapPilot/internal/model"
)

type staticSource struct {
	tokens []model.Token
	err    error
}

func (s staticSource) Load(context.Context) ([]model.Token, error) {
	return s.tokens, s.err
}

var kaju = model.Token{Symbol: "KAJU", Name: "Kaju", Address: common.HexToAddress("0x1000000000000000000000000000000000000001"), Decimals: 18}

func TestLookup(t *testing.T) {
	c, err := Load(context.Background(), Builtin{}, staticSource{tokens: []model.Token{kaju}})
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())

	got, err := c.Lookup("usdc")
	require.NoError(t, err)
	require.Equal(t, uint8(6), got.Decimals)

	got, err = c.Lookup("0x1000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Equal(t, "KAJU", got.Symbol)

	got, err = c.Lookup("eth")
	require.NoError(t, err)
	require.True(t, got.IsNative())

	_, err = c.Lookup("DOGE")
	require.ErrorIs(t, err, ErrUnknownToken)
	_, err = c.Lookup("0x4000000000000000000000000000000000000004")
	require.ErrorIs(t, err, ErrUnknownToken)
}

func TestLaterSourceOverrides(t *testing.T) {
	renamed := kaju
	renamed.Name = "Kaju Katli"
	c, err := Load(context.Background(), staticSource{tokens: []model.Token{kaju}}, staticSource{tokens: []model.Token{renamed}})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	require.Equal(t, "Kaju Katli", c.List()[0].Name)
}

func TestAmbiguousSymbol(t *testing.T) {
	other := kaju
	other.Address = common.HexToAddress("0x1000000000000000000000000000000000000002")
	c := NewCatalog(kaju, other)

	_, err := c.Lookup("KAJU")
	require.ErrorIs(t, err, ErrAmbiguousToken)
	_, err = c.Lookup(other.Address.Hex())
	require.NoError(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(context.Background(), staticSource{tokens: []model.Token{{Symbol: "BAD"}}})
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = Load(context.Background(), staticSource{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestSorted(t *testing.T) {
	c := NewCatalog(Sepolia()...)
	var symbols []string
	for _, tok := range c.Sorted() {
		symbols = append(symbols, tok.Symbol)
	}
	require.Equal(t, []string{"ETH", "USDC", "WETH"}, symbols)
}
