package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime-mutable configuration (processor
// enable/weight/threshold/priority_rank, rollout percentages) stored
// alongside the rest of the orchestrator's data, distinct from the
// process-start Config loaded by Manager from file/env.
type Store interface {
	// Get returns a single config entry by key.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// PostgresStore implements Store against the `orchestrator_config` table
// (see internal/storage/postgres/schema.sql), replacing the teacher's
// DefraDB-GraphQL-backed store with the same Get/Set/GetAll/GetByPrefix/
// Delete contract.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Postgres-backed config store.
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns a single config entry by key.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, value, description FROM orchestrator_config WHERE key = $1`, key)

	var e Entry
	var raw []byte
	if err := row.Scan(&e.Key, &raw, &e.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if err := json.Unmarshal(raw, &e.Value); err != nil {
		e.Value = string(raw)
	}
	return &e, nil
}

// Set creates or updates a config entry.
func (s *PostgresStore) Set(ctx context.Context, key string, value any, description string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO orchestrator_config (key, value, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`,
		key, raw, description)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *PostgresStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value, description FROM orchestrator_config`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Entry)
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.Key, &raw, &e.Description); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Value); err != nil {
			e.Value = string(raw)
		}
		result[e.Key] = e
	}
	return result, rows.Err()
}

// GetByPrefix returns config entries matching the prefix.
func (s *PostgresStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]Entry)
	for key, entry := range all {
		if strings.HasPrefix(key, prefix) {
			result[key] = entry
		}
	}
	return result, nil
}

// Delete removes a config entry by key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM orchestrator_config WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}
