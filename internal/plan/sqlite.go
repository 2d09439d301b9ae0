package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	version      INTEGER NOT NULL,
	generated_at INTEGER NOT NULL,
	data         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS plans_user_generated ON plans (user_id, generated_at DESC);
`

// SQLiteStore implements the Store interface on a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and if needed creates) the plan database at path
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open plan database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create plan schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts or replaces a plan
func (s *SQLiteStore) Save(ctx context.Context, p *Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO plans (id, user_id, version, generated_at, data)
        VALUES (?, ?, ?, ?, ?)
    `, p.ID, p.UserID, p.Version, p.GeneratedAt.UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("failed to store plan: %w", err)
	}
	return nil
}

// Get retrieves a plan by ID
func (s *SQLiteStore) Get(ctx context.Context, planID string) (*Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM plans WHERE id = ?`, planID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return decodePlan(planID, body)
}

// Latest returns the newest plan for a user
func (s *SQLiteStore) Latest(ctx context.Context, userID string) (*Plan, error) {
	plans, err := s.List(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return plans[0], nil
}

// List returns plans for a user, newest first
func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]*Plan, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, data FROM plans
        WHERE user_id = ?
        ORDER BY generated_at DESC, version DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		p, err := decodePlan(id, body)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	return plans, nil
}

// Delete removes a plan
func (s *SQLiteStore) Delete(ctx context.Context, planID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, planID); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return nil
}

// Prune deletes plans generated before cutoff and returns how many were removed
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE generated_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune plans: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodePlan(planID, body string) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", planID, err)
	}
	return &p, nil
}
