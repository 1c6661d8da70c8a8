package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/serial"
)

// ChainInfo describes a stored chain without decoding it.
type ChainInfo struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Seq  int64  `json:"seq"`
	Size int    `json:"size"`
}

// SaveChain stores c under its name, replacing any previous version.
// Saving an unchanged chain (same encoding) keeps its seq.
func (s *Store) SaveChain(ctx context.Context, c *engine.Chain) (ChainInfo, error) {
	data, err := serial.MarshalChain(c, s.reg)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %s: %w", c.Name(), err)
	}
	hash, err := c.Hash()
	if err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %s: %w", c.Name(), err)
	}

	var seq int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO chains (name, hash, data, seq)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			hash = excluded.hash,
			data = excluded.data,
			seq  = CASE WHEN chains.data = excluded.data THEN chains.seq ELSE chains.seq + 1 END
		RETURNING seq
	`, c.Name(), hash, data).Scan(&seq)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("save chain %s: %w", c.Name(), err)
	}

	s.cache.Set(c.Name(), data, gocache.DefaultExpiration)
	return ChainInfo{Name: c.Name(), Hash: hash, Seq: seq, Size: len(data)}, nil
}

// LoadChain decodes the stored chain name into a new chain. The caller
// owns the result and must Destroy it.
func (s *Store) LoadChain(ctx context.Context, name string) (*engine.Chain, error) {
	if s.reg == nil {
		return nil, fmt.Errorf("load chain %s: store has no block registry", name)
	}
	data, err := s.chainData(ctx, name)
	if err != nil {
		return nil, err
	}
	c, err := serial.UnmarshalChain(data, s.reg)
	if err != nil {
		return nil, fmt.Errorf("load chain %s: %w", name, err)
	}
	return c, nil
}

func (s *Store) chainData(ctx context.Context, name string) ([]byte, error) {
	if v, ok := s.cache.Get(name); ok {
		if data, ok := v.([]byte); ok {
			return data, nil
		}
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM chains WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load chain %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load chain %s: %w", name, err)
	}
	s.cache.Set(name, data, gocache.DefaultExpiration)
	return data, nil
}

// Info returns metadata for the stored chain name.
func (s *Store) Info(ctx context.Context, name string) (ChainInfo, error) {
	info := ChainInfo{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, seq, length(data) FROM chains WHERE name = ?
	`, name).Scan(&info.Hash, &info.Seq, &info.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return ChainInfo{}, fmt.Errorf("chain %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return ChainInfo{}, fmt.Errorf("chain %s: %w", name, err)
	}
	return info, nil
}

// ListChains returns all stored chains ordered by name.
// Returns an empty slice (not nil) if the store holds no chains.
func (s *Store) ListChains(ctx context.Context) ([]ChainInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, hash, seq, length(data)
		FROM chains
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer rows.Close()

	chains := []ChainInfo{}
	for rows.Next() {
		var info ChainInfo
		if err := rows.Scan(&info.Name, &info.Hash, &info.Seq, &info.Size); err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		chains = append(chains, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	return chains, nil
}

// DeleteChain removes a chain and its variable snapshots.
func (s *Store) DeleteChain(ctx context.Context, name string) error {
	s.cache.Delete(name)
	res, err := s.db.ExecContext(ctx, `DELETE FROM chains WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete chain %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete chain %s: %w", name, ErrNotFound)
	}
	return nil
}
