package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chainflow/internal/engine"
	"github.com/roach88/chainflow/internal/serial"
	"github.com/roach88/chainflow/internal/variant"
)

// SaveVariables writes a new snapshot of c's chain variables and returns
// its seq. The chain must already be saved. Variables that cannot be
// serialized fail the whole snapshot.
func (s *Store) SaveVariables(ctx context.Context, c *engine.Chain) (int64, error) {
	names := c.Variables()
	blobs := make([][]byte, len(names))
	for i, name := range names {
		v, _ := c.FindVariable(name)
		data, err := serial.Marshal(v, s.reg)
		if err != nil {
			return 0, fmt.Errorf("save variables %s: %s: %w", c.Name(), name, err)
		}
		blobs[i] = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save variables %s: %w", c.Name(), err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM variable_snapshots WHERE chain = ?
	`, c.Name()).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("save variables %s: %w", c.Name(), err)
	}

	if len(names) == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variable_snapshots (chain, seq, name, data) VALUES (?, ?, NULL, NULL)
		`, c.Name(), seq); err != nil {
			return 0, fmt.Errorf("save variables %s: %w", c.Name(), err)
		}
	}
	for i, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variable_snapshots (chain, seq, name, data) VALUES (?, ?, ?, ?)
		`, c.Name(), seq, name, blobs[i]); err != nil {
			return 0, fmt.Errorf("save variables %s: %w", c.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save variables %s: %w", c.Name(), err)
	}
	return seq, nil
}

// LoadVariables replaces c's variables with its latest snapshot and
// returns the snapshot's seq.
func (s *Store) LoadVariables(ctx context.Context, c *engine.Chain) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM variable_snapshots WHERE chain = ? ORDER BY seq DESC LIMIT 1
	`, c.Name()).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("load variables %s: %w", c.Name(), ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load variables %s: %w", c.Name(), err)
	}
	return seq, s.LoadSnapshot(ctx, c, seq)
}

// LoadSnapshot replaces c's variables with snapshot seq. Variables not
// in the snapshot are deleted. c is left unchanged on error.
func (s *Store) LoadSnapshot(ctx context.Context, c *engine.Chain, seq int64) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, data
		FROM variable_snapshots
		WHERE chain = ? AND seq = ?
		ORDER BY name COLLATE BINARY ASC
	`, c.Name(), seq)
	if err != nil {
		return fmt.Errorf("load snapshot %s@%d: %w", c.Name(), seq, err)
	}
	defer rows.Close()

	type entry struct {
		name  string
		value variant.Variant
	}
	var (
		entries []entry
		found   bool
	)
	release := func() {
		for i := range entries {
			variant.Destroy(&entries[i].value)
		}
	}
	for rows.Next() {
		found = true
		var (
			name sql.NullString
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			release()
			return fmt.Errorf("scan snapshot: %w", err)
		}
		if !name.Valid {
			continue
		}
		e := entry{name: name.String}
		if err := serial.Unmarshal(data, &e.value, s.reg); err != nil {
			release()
			return fmt.Errorf("load snapshot %s@%d: %s: %w", c.Name(), seq, name.String, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		release()
		return fmt.Errorf("iterate snapshot: %w", err)
	}
	if !found {
		return fmt.Errorf("load snapshot %s@%d: %w", c.Name(), seq, ErrNotFound)
	}

	for _, name := range c.Variables() {
		c.DeleteVariable(name)
	}
	for i := range entries {
		// Move ownership into the chain's slot.
		*c.Variable(entries[i].name) = entries[i].value
	}
	return nil
}

// Snapshots returns the seqs of chain's snapshots, oldest first.
func (s *Store) Snapshots(ctx context.Context, chain string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT seq FROM variable_snapshots WHERE chain = ? ORDER BY seq ASC
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	seqs := []int64{}
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return seqs, nil
}
