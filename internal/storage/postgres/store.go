package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapPilot/internal/model"
)

// Schema creates the catalog table.
const Schema = `
CREATE TABLE IF NOT EXISTS tokens (
	chain_id   BIGINT      NOT NULL,
	address    TEXT        NOT NULL,
	symbol     TEXT        NOT NULL,
	name       TEXT        NOT NULL DEFAULT '',
	decimals   SMALLINT    NOT NULL,
	logo_uri   TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, address)
)`

// Store provides the Postgres token catalog for one chain.
type Store struct {
	pool    *pgxpool.Pool
	chainID int64
}

// NewStore connects and creates the tokens table when it is missing, so a
// fresh database can be read before anything was synced into it.
func NewStore(ctx context.Context, dsn string, chainID int64) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool, chainID: chainID}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate tokens table: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tokens table if it is missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// LoadTokens returns the chain's catalog ordered by symbol.
func (s *Store) LoadTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, symbol, name, decimals, logo_uri
		FROM tokens
		WHERE chain_id = $1
		ORDER BY symbol, address
	`, s.chainID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanToken)
}

// PutTokens inserts or updates catalog entries.
func (s *Store) PutTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, token := range tokens {
		batch.Queue(`
			INSERT INTO tokens (
				chain_id, address, symbol, name, decimals, logo_uri, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (chain_id, address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				decimals = EXCLUDED.decimals,
				logo_uri = CASE WHEN EXCLUDED.logo_uri = '' THEN tokens.logo_uri ELSE EXCLUDED.logo_uri END,
				updated_at = now()
		`,
			s.chainID,
			token.Address.Hex(),
			token.Symbol,
			token.Name,
			int16(token.Decimals),
			token.LogoURI,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tokens {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func scanToken(row pgx.CollectableRow) (model.Token, error) {
	var (
		address  string
		decimals int16
		token    model.Token
	)
	if err := row.Scan(&address, &token.Symbol, &token.Name, &decimals, &token.LogoURI); err != nil {
		return model.Token{}, err
	}
	if !common.IsHexAddress(address) {
		return model.Token{}, fmt.Errorf("tokens row: invalid address %q", address)
	}
	if decimals < 0 || decimals > 255 {
		return model.Token{}, fmt.Errorf("tokens row %s: decimals %d out of range", address, decimals)
	}
	token.Address = common.HexToAddress(address)
	token.Decimals = uint8(decimals)
	return token, nil
}
