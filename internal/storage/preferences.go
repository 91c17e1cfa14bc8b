package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createPreferencesSQL = `CREATE TABLE IF NOT EXISTS preferences (
        owner      TEXT        NOT NULL,
        key        TEXT        NOT NULL,
        value      TEXT        NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (owner, key)
    );`

	upsertPreferenceSQL = `INSERT INTO preferences (owner, key, value)
    VALUES ($1, $2, $3)
    ON CONFLICT (owner, key) DO UPDATE
    SET value      = EXCLUDED.value,
        updated_at = now();`

	getPreferenceSQL = `SELECT value FROM preferences WHERE owner = $1 AND key = $2;`
)

// VoteKey is the preference key recording an owner's sentiment vote in epoch n.
func VoteKey(epoch int) string {
	return "sentiment-vote-epoch-" + strconv.Itoa(epoch)
}

// PreferenceStore reads and writes single string preferences per owner.
type PreferenceStore interface {
	GetPreference(ctx context.Context, owner, key string) (string, bool, error)
	SetPreference(ctx context.Context, owner, key, value string) error
}

// Store persists preferences in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the preferences table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createPreferencesSQL); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

// GetPreference returns the stored value and whether it exists.
func (s *Store) GetPreference(ctx context.Context, owner, key string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}

	var value string
	if err := pool.QueryRow(ctx, getPreferenceSQL, owner, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return value, true, nil
}

// SetPreference inserts or replaces a value.
func (s *Store) SetPreference(ctx context.Context, owner, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, upsertPreferenceSQL, owner, key, value); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]string)}
}

// GetPreference returns the stored value and whether it exists.
func (m *MemoryStore) GetPreference(_ context.Context, owner, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[owner][key]
	return value, ok, nil
}

// SetPreference inserts or replaces a value.
func (m *MemoryStore) SetPreference(_ context.Context, owner, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.values[owner]
	if !ok {
		byKey = make(map[string]string)
		m.values[owner] = byKey
	}
	byKey[key] = value
	return nil
}

var _ PreferenceStore = (*Store)(nil)
var _ PreferenceStore = (*MemoryStore)(nil)
