package storage

import (
	"context"

	"swapPilot/internal/model"
)

// TokenStore persists catalog entries.
type TokenStore interface {
	LoadTokens(ctx context.Context) ([]model.Token, error)
	PutTokens(ctx context.Context, tokens []model.Token) error
}

// Source adapts a TokenStore to the catalog's Load signature.
type Source struct {
	Store TokenStore
}

func (s Source) Load(ctx context.Context) ([]model.Token, error) {
	return s.Store.LoadTokens(ctx)
}
