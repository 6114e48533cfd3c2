package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed schema.sql
var schemaSQL string

var _ workouts.Store = (*Store)(nil)

// Store keeps users and the catalog in Postgres. User records are stored
// as JSONB documents with the same layout as userdata.json.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.migrate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// SeedCatalog inserts or updates the given workouts.
func (s *Store) SeedCatalog(ctx context.Context, catalog workouts.Catalog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.seedCatalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workouts", len(catalog)))

	if err := catalog.Validate(); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, id := range catalog.IDs() {
		w := catalog[id]
		attributesJson, err := json.Marshal(w.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes of %s: %w", id, err)
		}
		batch.Queue(
			`INSERT INTO workout_type (id, name, muscle_group, attributes)
				VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name, muscle_group = EXCLUDED.muscle_group, attributes = EXCLUDED.attributes`,
			id, w.Name, w.Group, attributesJson,
		)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return nil
}

func (s *Store) GetCredentials(ctx context.Context, username string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.getCredentials")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var password string
	err = s.db.QueryRow(
		ctx,
		`SELECT password FROM app_user WHERE username = $1`,
		username,
	).Scan(&password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", workouts.ErrUserNotFound
		}
		return "", fmt.Errorf("get credentials [query row]: %w", err)
	}
	return password, nil
}

func (s *Store) AddUser(ctx context.Context, username, password string, record *workouts.UserRecord) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	recordJson, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO app_user (username, password) VALUES ($1, $2)`,
			username, password,
		); err != nil {
			if isUniqueViolation(err) {
				return workouts.ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}

		if _, err := tx.Exec(
			ctx,
			`INSERT INTO user_record (username, data) VALUES ($1, $2)`,
			username, recordJson,
		); err != nil {
			return fmt.Errorf("insert user record: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, username string) (_ *workouts.UserRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.getUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var data []byte
	err = s.db.QueryRow(
		ctx,
		`SELECT data FROM user_record WHERE username = $1`,
		username,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workouts.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user [query row]: %w", err)
	}

	var record workouts.UserRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &record, nil
}

// UpdateUser locks the record row for the duration of fn.
func (s *Store) UpdateUser(ctx context.Context, username string, fn func(*workouts.UserRecord) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.updateUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(
			ctx,
			`SELECT data FROM user_record WHERE username = $1 FOR UPDATE`,
			username,
		).Scan(&data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return workouts.ErrUserNotFound
			}
			return fmt.Errorf("select user record: %w", err)
		}

		var record workouts.UserRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode user record: %w", err)
		}
		if err := fn(&record); err != nil {
			return err
		}

		updated, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := tx.Exec(
			ctx,
			`UPDATE user_record SET data = $2, updated_at = now() WHERE username = $1`,
			username, updated,
		); err != nil {
			return fmt.Errorf("update user record: %w", err)
		}
		return nil
	})
}

func (s *Store) Catalog(ctx context.Context) (_ workouts.Catalog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.pgstore.catalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := s.db.Query(
		ctx,
		`SELECT id, name, muscle_group, attributes FROM workout_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog [query]: %w", err)
	}
	defer rows.Close()

	catalog := workouts.Catalog{}
	for rows.Next() {
		var (
			id             string
			w              workouts.Workout
			attributesJson []byte
		)
		if err := rows.Scan(&id, &w.Name, &w.Group, &attributesJson); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal(attributesJson, &w.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", id, err)
		}
		catalog[id] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	span.SetAttributes(attribute.Int("workouts", len(catalog)))
	return catalog, nil
}

// Close is a no-op, the pool is owned by the caller.
func (s *Store) Close() error {
	return nil
}
