// Package postgres provides a PostgreSQL-backed bookmarks table.
// Every statement runs in a transaction that first sets the shelf.user_id
// setting, so the row-level security policy installed by the migrations
// enforces ownership on top of the owner predicate of each query.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// DB is a PostgreSQL implementation of store.Table.
type DB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	migrate bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithMigrations enables or disables applying migrations on startup (enabled by default).
func WithMigrations(value bool) InitOption {
	return func(options *initOptions) {
		options.migrate = value
	}
}

// New opens the database, checks connectivity within connectionTimeout and
// applies the embedded migrations.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*DB, error) {
	options := &initOptions{migrate: true}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	result := &DB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if options.migrate {
		if err := Migrate(ctx, database); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	return result, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, database, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (db *DB) Select(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	result := []domain.Bookmark{}

	err := db.asOwner(ctx, ownerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(
			ctx,
			`
				SELECT id, title, url, user_id, created_at
					FROM bookmarks
					WHERE user_id = $1
					ORDER BY created_at DESC, seq DESC
			`,
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var b domain.Bookmark
			if err := rows.Scan(&b.ID, &b.Title, &b.URL, &b.OwnerID, &b.CreatedAt); err != nil {
				return err
			}
			result = append(result, b)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmarks: %w", err)
	}

	return result, nil
}

func (db *DB) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	b := domain.Bookmark{
		OwnerID: nb.OwnerID,
		Title:   nb.Title,
		URL:     nb.URL,
	}

	err := db.asOwner(ctx, nb.OwnerID, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(
			ctx,
			`INSERT INTO bookmarks (title, url, user_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
			nb.Title,
			nb.URL,
			nb.OwnerID,
		)
		return row.Scan(&b.ID, &b.CreatedAt)
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to insert bookmark: %w", err)
	}

	return b, nil
}

func (db *DB) Update(ctx context.Context, edit domain.BookmarkEdit) (int64, error) {
	// A malformed id cannot match any row.
	if _, err := uuid.Parse(edit.ID); err != nil {
		return 0, nil
	}

	var affected int64
	err := db.asOwner(ctx, edit.OwnerID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE bookmarks SET title = $1, url = $2 WHERE id = $3 AND user_id = $4`,
			edit.Title,
			edit.URL,
			edit.ID,
			edit.OwnerID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update bookmark: %w", err)
	}

	return affected, nil
}

func (db *DB) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}

	var affected int64
	err := db.asOwner(ctx, ownerID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`,
			id,
			ownerID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	return affected, nil
}

// Ping verifies connectivity with the database within the configured timeout.
func (db *DB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.database.Close()
}

// asOwner runs fn in a transaction bound to ownerID for the row-level security policy.
func (db *DB) asOwner(ctx context.Context, ownerID string, fn func(tx *sql.Tx) error) error {
	tx, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('shelf.user_id', $1, true)`, ownerID); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
