// Package overlay persists user-created landmarks in a single keyed
// slot. The slot holds one JSON array of landmark-shaped records; it
// is read once at tour load and rewritten wholesale on every append.
package overlay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// slotKey is the one slot this service uses.
const slotKey = "locations"

// ErrCorrupt marks a slot whose payload does not parse as a JSON
// array. Callers treat it as an empty overlay.
var ErrCorrupt = errors.New("overlay slot holds unparsable data")

// Store reads and rewrites the custom-landmark slot. Writes are
// serialized by an internal lock because append is a read-modify-write
// of shared state.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReadAll returns the raw records currently persisted, or nil when the
// slot is absent. A slot holding anything but a JSON array yields
// ErrCorrupt.
func (s *Store) ReadAll(ctx context.Context) ([]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM slots WHERE key = ?`, slotKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %q: %w", slotKey, err)
	}

	var records []any
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}

// Append adds one record to the slot and rewrites it in full. A
// corrupt existing payload is discarded rather than preserved; it was
// already unreadable to every consumer.
func (s *Store) Append(ctx context.Context, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.ReadAll(ctx)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	records = append(records, record)
	return s.write(ctx, records)
}

// Clear drops the slot entirely.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, slotKey)
	if err != nil {
		return fmt.Errorf("clearing slot %q: %w", slotKey, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, records []any) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding slot %q: %w", slotKey, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slots (key, data, updated_at) VALUES (?, jsonb(?), ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slotKey, string(data), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("writing slot %q: %w", slotKey, err)
	}
	return nil
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
