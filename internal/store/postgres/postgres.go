// Package postgres persists learned customer knowledge and usage events in
// PostgreSQL. It implements learning.Store and usage.EventStore.
//
// Confidence blends run inside the database: the terminology blend is a
// single INSERT ... ON CONFLICT statement and the preference reinforce/decay
// runs inside a transaction holding a row lock, so concurrent turns for the
// same customer cannot lose an update to an interleaved read-modify-write.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/loadpilot/loadpilot/internal/learning"
	"github.com/loadpilot/loadpilot/internal/usage"
)

// Store is a PostgreSQL-backed store for the learning subsystem.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS customer_terminology (
	id UUID PRIMARY KEY,
	customer_id TEXT NOT NULL,
	term TEXT NOT NULL,
	definition TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (customer_id, term)
);

CREATE TABLE IF NOT EXISTS customer_profiles (
	customer_id TEXT PRIMARY KEY,
	preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
	products JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_corrections (
	id UUID PRIMARY KEY,
	customer_id TEXT NOT NULL,
	original_text TEXT NOT NULL,
	corrected_text TEXT NOT NULL,
	context TEXT,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS customer_corrections_customer_idx
	ON customer_corrections (customer_id, created_at);

CREATE TABLE IF NOT EXISTS usage_events (
	id UUID PRIMARY KEY,
	customer_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_details JSONB,
	hour_of_day SMALLINT NOT NULL,
	day_of_week SMALLINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS usage_events_customer_created_idx
	ON usage_events (customer_id, created_at);
`

// Migrate creates the subsystem's tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertTerminology inserts the entry or blends it into the existing row:
// confidence rises by the blend step (capped at 1.0) and the definition is
// overwritten. The blend runs in a single statement.
func (s *Store) UpsertTerminology(ctx context.Context, entry learning.TerminologyEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_terminology
			(id, customer_id, term, definition, confidence, is_active, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $7)
		ON CONFLICT (customer_id, term) DO UPDATE SET
			definition = EXCLUDED.definition,
			confidence = LEAST(customer_terminology.confidence + $8, 1.0),
			updated_at = EXCLUDED.updated_at
		WHERE customer_terminology.is_active`,
		entry.ID, entry.CustomerID, entry.Term, entry.Definition,
		entry.Confidence, string(entry.Source), entry.UpdatedAt,
		learning.TerminologyBlendStep)
	if err != nil {
		return fmt.Errorf("upsert terminology %q: %w", entry.Term, err)
	}
	return nil
}

// ActiveTerminology returns all active entries for the customer.
func (s *Store) ActiveTerminology(ctx context.Context, customerID string) ([]learning.TerminologyEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, term, definition, confidence, is_active, source, created_at, updated_at
		FROM customer_terminology
		WHERE customer_id = $1 AND is_active
		ORDER BY term`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("query terminology: %w", err)
	}
	defer rows.Close()

	var entries []learning.TerminologyEntry
	for rows.Next() {
		var e learning.TerminologyEntry
		var source string
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Term, &e.Definition,
			&e.Confidence, &e.Active, &source, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan terminology row: %w", err)
		}
		e.Source = learning.Source(source)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReinforcePreference applies the reinforce/decay rule to the customer's
// preference map inside a transaction holding the profile row lock.
func (s *Store) ReinforcePreference(ctx context.Context, customerID, category, value string, increment float64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Ensure the profile row exists, then lock it for the read-blend-write.
	if _, err := tx.Exec(ctx, `
		INSERT INTO customer_profiles (customer_id, updated_at)
		VALUES ($1, now())
		ON CONFLICT (customer_id) DO NOTHING`,
		customerID); err != nil {
		return fmt.Errorf("ensure profile row: %w", err)
	}

	var raw []byte
	if err := tx.QueryRow(ctx, `
		SELECT preferences FROM customer_profiles
		WHERE customer_id = $1
		FOR UPDATE`,
		customerID).Scan(&raw); err != nil {
		return fmt.Errorf("lock profile row: %w", err)
	}

	weights := make(learning.PreferenceWeights)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &weights); err != nil {
			return fmt.Errorf("decode preference weights: %w", err)
		}
	}
	weights[category] = learning.Reinforce(weights[category], value, increment)

	updated, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("encode preference weights: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE customer_profiles
		SET preferences = $2, updated_at = now()
		WHERE customer_id = $1`,
		customerID, updated); err != nil {
		return fmt.Errorf("update preference weights: %w", err)
	}

	return tx.Commit(ctx)
}

// Preferences returns the customer's preference-weight map, empty when no
// profile exists yet.
func (s *Store) Preferences(ctx context.Context, customerID string) (learning.PreferenceWeights, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT preferences FROM customer_profiles WHERE customer_id = $1`,
		customerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return make(learning.PreferenceWeights), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	weights := make(learning.PreferenceWeights)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &weights); err != nil {
			return nil, fmt.Errorf("decode preference weights: %w", err)
		}
	}
	return weights, nil
}

// InsertCorrection appends a correction record.
func (s *Store) InsertCorrection(ctx context.Context, c learning.Correction) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_corrections
			(id, customer_id, original_text, corrected_text, context, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.CustomerID, c.Original, c.Corrected, c.Context, c.Processed, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// AddProduct appends a product to the profile's product list if absent.
func (s *Store) AddProduct(ctx context.Context, customerID, product string) error {
	encoded, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO customer_profiles (customer_id, products, updated_at)
		VALUES ($1, jsonb_build_array($2::text), now())
		ON CONFLICT (customer_id) DO UPDATE SET
			products = CASE
				WHEN customer_profiles.products @> $3::jsonb THEN customer_profiles.products
				ELSE customer_profiles.products || $3::jsonb
			END,
			updated_at = now()`,
		customerID, product, encoded)
	if err != nil {
		return fmt.Errorf("add product %q: %w", product, err)
	}
	return nil
}

// InsertEvent appends one usage event.
func (s *Store) InsertEvent(ctx context.Context, event usage.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_events
			(id, customer_id, event_type, event_details, hour_of_day, day_of_week, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.CustomerID, string(event.Type), details,
		event.HourOfDay, event.DayOfWeek, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// EventsSince returns the customer's events created at or after since.
func (s *Store) EventsSince(ctx context.Context, customerID string, since time.Time) ([]usage.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, event_type, event_details, hour_of_day, day_of_week, created_at
		FROM usage_events
		WHERE customer_id = $1 AND created_at >= $2
		ORDER BY created_at`,
		customerID, since)
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		var eventType string
		var details []byte
		if err := rows.Scan(&e.ID, &e.CustomerID, &eventType, &details,
			&e.HourOfDay, &e.DayOfWeek, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		e.Type = usage.EventType(eventType)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
