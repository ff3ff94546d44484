package tokens

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"swapPilot/internal/model"
)

var (
	ErrUnknownToken   = errors.New("unknown token")
	ErrAmbiguousToken = errors.New("ambiguous token symbol")
)

// Source loads catalog entries.
type Source interface {
	Load(ctx context.Context) ([]model.Token, error)
}

// Catalog is the static token list a session picks from. Entries are keyed by
// address; a later entry for the same address replaces an earlier one.
type Catalog struct {
	order  []common.Address
	tokens map[common.Address]model.Token
}

func NewCatalog(tokens ...model.Token) *Catalog {
	c := &Catalog{tokens: make(map[common.Address]model.Token)}
	for _, t := range tokens {
		c.Add(t)
	}
	return c
}

// Load merges sources in order.
func Load(ctx context.Context, sources ...Source) (*Catalog, error) {
	c := NewCatalog()
	for _, src := range sources {
		if src == nil {
			continue
		}
		list, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range list {
			if err := Validate(t); err != nil {
				return nil, err
			}
			c.Add(t)
		}
	}
	return c, nil
}

func (c *Catalog) Add(t model.Token) {
	if _, ok := c.tokens[t.Address]; !ok {
		c.order = append(c.order, t.Address)
	}
	c.tokens[t.Address] = t
}

// List returns the entries in insertion order.
func (c *Catalog) List() []model.Token {
	out := make([]model.Token, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, c.tokens[addr])
	}
	return out
}

// Sorted returns the entries ordered by symbol.
func (c *Catalog) Sorted() []model.Token {
	out := c.List()
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Symbol) < strings.ToLower(out[j].Symbol)
	})
	return out
}

// Lookup resolves a symbol or a hex address.
func (c *Catalog) Lookup(ref string) (model.Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		if t, ok := c.tokens[common.HexToAddress(ref)]; ok {
			return t, nil
		}
		return model.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}

	var matches []model.Token
	for _, addr := range c.order {
		if t := c.tokens[addr]; t.Is(ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	case 1:
		return matches[0], nil
	}
	return model.Token{}, fmt.Errorf("%w: %s matches %d tokens, use the address", ErrAmbiguousToken, ref, len(matches))
}

func (c *Catalog) Len() int { return len(c.order) }

// Validate rejects entries a session could not trade.
func Validate(t model.Token) error {
	if t.Address == (common.Address{}) {
		return fmt.Errorf("token %q: zero address", t.Symbol)
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("token %s: empty symbol", t.Address.Hex())
	}
	if t.Decimals > 77 {
		return fmt.Errorf("token %s: decimals %d out of range", t.Symbol, t.Decimals)
	}
	return nil
}
