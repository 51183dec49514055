package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is a flat, word-keyed alternative to store.DirStore with the same
// merge contract.
type Store struct {
	conn *sql.DB
}

// NewStore wraps an initialized connection.
func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

// Load returns the modifiers stored for word.
func (s *Store) Load(ctx context.Context, word string) ([]modifier.Modifier, error) {
	if err := store.ValidWord(word); err != nil {
		return nil, err
	}
	return GetModifiers(ctx, s.conn, word)
}

// Merge adds mods to word's row inside a transaction.
func (s *Store) Merge(ctx context.Context, word string, mods []modifier.Modifier) ([]modifier.Modifier, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	merged, err := MergeModifiers(ctx, tx, word, mods)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge %q: %w", word, err)
	}
	return merged, nil
}

// GetModifiers decodes word's row, returning store.ErrNotFound when absent.
func GetModifiers(ctx context.Context, db DBExecutor, word string) ([]modifier.Modifier, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT modifiers FROM records WHERE word = ?`, word).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%q: %w", word, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	mods, err := modifier.Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", word, err)
	}
	return mods, nil
}

// MergeModifiers performs read-merge-dedup-write for one word. Run it inside
// a transaction so concurrent merges of the same word cannot interleave.
func MergeModifiers(ctx context.Context, db DBExecutor, word string, mods []modifier.Modifier) ([]modifier.Modifier, error) {
	if err := store.ValidWord(word); err != nil {
		return nil, err
	}
	for _, m := range mods {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%q: %w", word, err)
		}
	}

	existing, err := GetModifiers(ctx, db, word)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	merged := modifier.Merge(existing, mods)
	if err == nil && modifier.EqualList(existing, merged) {
		return merged, nil
	}

	data, err := modifier.Encode(merged)
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO records (word, modifiers, updated_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT(word)
			  DO UPDATE SET modifiers = excluded.modifiers, updated_at = excluded.updated_at`,
		word, string(data), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert record %q: %w", word, err)
	}
	return merged, nil
}

// ListWords returns every stored word in lexical order.
func ListWords(ctx context.Context, db DBExecutor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT word FROM records ORDER BY word`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordBuild stores provenance for a finished pipeline run.
func RecordBuild(ctx context.Context, db DBExecutor, pipeline string, formulaVersion, records int) (int64, error) {
	if pipeline == "" {
		return 0, fmt.Errorf("pipeline must be non-empty")
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO builds (pipeline, formula_version, records, finished_at) VALUES (?, ?, ?, ?)`,
		pipeline, formulaVersion, records, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LastBuild returns the most recent build row for pipeline.
func LastBuild(ctx context.Context, db DBExecutor, pipeline string) (Build, error) {
	var b Build
	err := db.QueryRowContext(ctx,
		`SELECT id, pipeline, formula_version, records, finished_at FROM builds WHERE pipeline = ? ORDER BY id DESC LIMIT 1`,
		pipeline).Scan(&b.ID, &b.Pipeline, &b.FormulaVersion, &b.Records, &b.FinishedAt)
	if err != nil {
		return Build{}, err
	}
	return b, nil
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, store.ErrNotFound)
}
