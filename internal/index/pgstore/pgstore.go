// Package pgstore serves an index part out of a Postgres table, read in key
// order one page at a time.
package pgstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/kv"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/postgres"
)

const (
	defaultPageSize = 256
	queryTimeout    = 10 * time.Second
)

// Store is a read-only kv.Store over rows (part, key, value) of one part.
type Store struct {
	db       *sql.DB
	table    string
	part     string
	pageSize int
	count    int
}

var _ kv.Store = (*Store)(nil)

// EnsureSchema creates table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		part  TEXT  NOT NULL,
		key   BYTEA NOT NULL,
		value BYTEA NOT NULL,
		PRIMARY KEY (part, key)
	)`, pq.QuoteIdentifier(table))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return apperrors.IO("creating table "+table, err)
	}
	return nil
}

// Load replaces the rows of part with entries in one transaction.
func Load(ctx context.Context, client *postgres.Client, table, part string, entries []kv.Entry) error {
	if err := kv.CheckSorted(entries); err != nil {
		return err
	}
	quoted := pq.QuoteIdentifier(table)
	err := client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoted+" WHERE part = $1", part); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoted+" (part, key, value) VALUES ($1, $2, $3)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, part, e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	return apperrors.IO("loading part "+part, err)
}

// Open counts the rows of part and returns a store over them.
func Open(ctx context.Context, db *sql.DB, table, part string, pageSize int) (*Store, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	s := &Store{db: db, table: pq.QuoteIdentifier(table), part: part, pageSize: pageSize}
	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table+" WHERE part = $1", part)
	if err := row.Scan(&s.count); err != nil {
		return nil, apperrors.IO("counting part "+part, err)
	}
	return s, nil
}

func (s *Store) Iterator() (kv.KeyIterator, error) {
	return &pageIterator{store: s}, nil
}

func (s *Store) Len() int { return s.count }

// Close is a no-op; the connection pool belongs to the caller.
func (s *Store) Close() error { return nil }

func (s *Store) fetch(from []byte, inclusive bool) ([]kv.Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	op := ">="
	if !inclusive {
		op = ">"
	}
	q := "SELECT key, value FROM " + s.table + " WHERE part = $1 AND key " + op + " $2 ORDER BY key LIMIT $3"
	if from == nil {
		from = []byte{}
	}
	rows, err := s.db.QueryContext(ctx, q, s.part, from, s.pageSize)
	if err != nil {
		return nil, apperrors.IO("querying part "+s.part, err)
	}
	defer rows.Close()

	page := make([]kv.Entry, 0, s.pageSize)
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, apperrors.IO("scanning part "+s.part, err)
		}
		page = append(page, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.IO("reading part "+s.part, err)
	}
	return page, nil
}

// pageIterator holds one page of rows at a time. A short page means the
// part has no rows past it.
type pageIterator struct {
	store   *Store
	page    []kv.Entry
	pos     int
	started bool
	done    bool
}

func (p *pageIterator) load(from []byte, inclusive bool) error {
	page, err := p.store.fetch(from, inclusive)
	if err != nil {
		return err
	}
	p.page, p.pos = page, 0
	p.done = len(page) == 0
	return nil
}

func (p *pageIterator) lastPage() bool {
	return len(p.page) < p.store.pageSize
}

func (p *pageIterator) positioned() bool {
	return p.started && !p.done
}

func (p *pageIterator) IsDone() bool { return p.done }

func (p *pageIterator) NextKey() (bool, error) {
	if p.done {
		return false, nil
	}
	if !p.started {
		p.started = true
		if err := p.load(nil, true); err != nil {
			return false, err
		}
		return !p.done, nil
	}
	p.pos++
	if p.pos < len(p.page) {
		return true, nil
	}
	if p.lastPage() {
		p.done = true
		return false, nil
	}
	if err := p.load(p.page[len(p.page)-1].Key, false); err != nil {
		return false, err
	}
	return !p.done, nil
}

func (p *pageIterator) SkipToKey(key []byte) (bool, error) {
	if p.done {
		return false, nil
	}
	if p.positioned() {
		cur := p.page[p.pos].Key
		if bytes.Compare(key, cur) <= 0 {
			return bytes.Equal(key, cur), nil
		}
		last := p.page[len(p.page)-1].Key
		if bytes.Compare(key, last) <= 0 || p.lastPage() {
			rest := p.page[p.pos:]
			p.pos += sort.Search(len(rest), func(i int) bool {
				return bytes.Compare(rest[i].Key, key) >= 0
			})
			if p.pos >= len(p.page) {
				p.done = true
				return false, nil
			}
			return bytes.Equal(p.page[p.pos].Key, key), nil
		}
	}
	p.started = true
	if err := p.load(key, true); err != nil {
		return false, err
	}
	if p.done {
		return false, nil
	}
	return bytes.Equal(p.page[0].Key, key), nil
}

func (p *pageIterator) KeyBytes() ([]byte, error) {
	if !p.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	return p.page[p.pos].Key, nil
}

func (p *pageIterator) Key() (string, error) {
	k, err := p.KeyBytes()
	return string(k), err
}

func (p *pageIterator) StringValue() (string, error) {
	if !p.positioned() {
		return "", apperrors.ErrNotPositioned
	}
	return string(p.page[p.pos].Value), nil
}

func (p *pageIterator) ValueStream() (io.Reader, error) {
	if !p.positioned() {
		return nil, apperrors.ErrNotPositioned
	}
	return bytes.NewReader(p.page[p.pos].Value), nil
}
