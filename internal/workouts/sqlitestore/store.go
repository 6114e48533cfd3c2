package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/internal/workouts/sqlitestore/migrations"

	"go.opentelemetry.io/otel/attribute"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ workouts.Store = (*Store)(nil)

// Store keeps users and the catalog in an embedded SQLite database.
// A single connection is used, so transactions never interleave.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// SeedCatalog inserts or updates the given workouts.
func (s *Store) SeedCatalog(ctx context.Context, catalog workouts.Catalog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.seedCatalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := catalog.Validate(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range catalog.IDs() {
			w := catalog[id]
			attributesJson, err := json.Marshal(w.Attributes)
			if err != nil {
				return fmt.Errorf("marshal attributes of %s: %w", id, err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO workout_type (id, name, muscle_group, attributes) VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE
					SET name = excluded.name, muscle_group = excluded.muscle_group, attributes = excluded.attributes`,
				id, w.Name, w.Group, string(attributesJson),
			); err != nil {
				return fmt.Errorf("upsert workout %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetCredentials(ctx context.Context, username string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.getCredentials")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var password string
	err = s.db.QueryRowContext(ctx, `SELECT password FROM app_user WHERE username = ?`, username).Scan(&password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", workouts.ErrUserNotFound
		}
		return "", fmt.Errorf("get credentials: %w", err)
	}
	return password, nil
}

func (s *Store) AddUser(ctx context.Context, username, password string, record *workouts.UserRecord) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	recordJson, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	now := time.Now().UTC().Unix()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO app_user (username, password, created_at) VALUES (?, ?, ?)`,
			username, password, now,
		); err != nil {
			if isConstraintViolation(err) {
				return workouts.ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO user_record (username, data, updated_at) VALUES (?, ?, ?)`,
			username, string(recordJson), now,
		); err != nil {
			return fmt.Errorf("insert user record: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, username string) (_ *workouts.UserRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.getUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return getRecord(ctx, s.db, username)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryRower, username string) (*workouts.UserRecord, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM user_record WHERE username = ?`, username).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workouts.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user record: %w", err)
	}

	var record workouts.UserRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &record, nil
}

func (s *Store) UpdateUser(ctx context.Context, username string, fn func(*workouts.UserRecord) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.updateUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		record, err := getRecord(ctx, tx, username)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}

		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE user_record SET data = ?, updated_at = ? WHERE username = ?`,
			string(updated), time.Now().UTC().Unix(), username,
		); err != nil {
			return fmt.Errorf("update user record: %w", err)
		}
		return nil
	})
}

func (s *Store) Catalog(ctx context.Context) (_ workouts.Catalog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlitestore.catalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, muscle_group, attributes FROM workout_type`)
	if err != nil {
		return nil, fmt.Errorf("catalog [query]: %w", err)
	}
	defer rows.Close()

	catalog := workouts.Catalog{}
	for rows.Next() {
		var (
			id             string
			w              workouts.Workout
			attributesJson string
		)
		if err := rows.Scan(&id, &w.Name, &w.Group, &attributesJson); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal([]byte(attributesJson), &w.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", id, err)
		}
		catalog[id] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return catalog, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
