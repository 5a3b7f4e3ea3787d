// Package postgresdb provides a PostgreSQL-based implementation of the storage interface
// for persisting users and their analysed contents.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the content storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type rowScanner interface {
	Scan(dest ...any) error
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `sql.Open()` calling: %w",
				err,
			)
	}

	result := NewWithDB(database, connectionTimeout)

	if err := result.Ping(ctx); err != nil {
		_ = database.Close()
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w",
				err,
			)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			_ = database.Close()
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := migrate(ctx, database, migrationsDir); err != nil {
		_ = database.Close()
		return nil, err
	}

	return result, nil
}

// NewWithDB wraps an already opened database without touching its schema.
func NewWithDB(database *sql.DB, connectionTimeout time.Duration) *PostgresDB {
	return &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}
}

func migrate(ctx context.Context, database *sql.DB, migrationsDir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/migrate(): error while `goose.SetDialect()` calling: %w",
			err,
		)
	}

	if err := goose.UpContext(ctx, database, migrationsDir); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/migrate(): error while `goose.UpContext()` calling: %w",
			err,
		)
	}

	return nil
}

// CreateUser inserts a new user. A taken email yields models.ErrDuplicateEmail.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *models.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, hashed_password, created_at) VALUES ($1, $2, $3, $4)`,
		usr.ID,
		usr.Email,
		usr.HashedPassword,
		usr.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.ErrDuplicateEmail
		}
		return err
	}

	return nil
}

// FindUserByEmail looks a user up by exact email.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, hashed_password, created_at FROM users WHERE email = $1`,
		email,
	)

	usr := &models.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.HashedPassword, &usr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

func (db *PostgresDB) CountUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

// CreateContent inserts a record without analysis.
func (db *PostgresDB) CreateContent(ctx context.Context, content *models.Content) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO contents (id, text, owner_id, created_at) VALUES ($1, $2, $3, $4)`,
		content.ID,
		content.Text,
		content.OwnerID,
		content.CreatedAt,
	)

	return err
}

// UpdateContentAnalysis sets both analysis columns in a single statement,
// only on a record that has not been analysed yet.
func (db *PostgresDB) UpdateContentAnalysis(
	ctx context.Context,
	id string,
	summary string,
	sentiment models.Sentiment,
) (*models.Content, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			UPDATE contents
				SET summary = $2, sentiment = $3
				WHERE id = $1 AND summary IS NULL
				RETURNING id, text, summary, sentiment, owner_id, created_at
		`,
		id,
		summary,
		string(sentiment),
	)

	content, err := scanContent(row)
	if err == nil {
		return content, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	err = db.database.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM contents WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/UpdateContentAnalysis(): error while `Scan()` calling: %w",
			err,
		)
	}
	if exists {
		return nil, models.ErrAlreadyAnalyzed
	}

	return nil, models.ErrNotFound
}

// ListContentsByOwner returns the owner's contents, newest first.
func (db *PostgresDB) ListContentsByOwner(ctx context.Context, ownerID string) ([]*models.Content, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, text, summary, sentiment, owner_id, created_at
				FROM contents
				WHERE owner_id = $1
				ORDER BY created_at DESC, seq DESC
		`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContents(rows)
}

// GetContentForOwner fetches a record only if ownerID owns it.
func (db *PostgresDB) GetContentForOwner(ctx context.Context, id, ownerID string) (*models.Content, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, text, summary, sentiment, owner_id, created_at
				FROM contents
				WHERE id = $1 AND owner_id = $2
		`,
		id,
		ownerID,
	)

	content, err := scanContent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

// DeleteContentForOwner removes a record only if ownerID owns it.
func (db *PostgresDB) DeleteContentForOwner(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM contents WHERE id = $1 AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ListUnanalyzedContents returns records without analysis after the cursor,
// oldest first.
func (db *PostgresDB) ListUnanalyzedContents(
	ctx context.Context,
	after models.ContentCursor,
	limit int,
) ([]*models.Content, error) {
	afterID := after.ID
	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, text, summary, sentiment, owner_id, created_at
				FROM contents
				WHERE summary IS NULL AND (created_at, id) > ($1, $2)
				ORDER BY created_at, id
				LIMIT $3
		`,
		after.CreatedAt,
		afterID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContents(rows)
}

func (db *PostgresDB) CountContents(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM contents`)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := db.database.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}

func scanContents(rows *sql.Rows) ([]*models.Content, error) {
	result := []*models.Content{}
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, content)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func scanContent(row rowScanner) (*models.Content, error) {
	var (
		content   models.Content
		summary   sql.NullString
		sentiment sql.NullString
	)

	err := row.Scan(
		&content.ID,
		&content.Text,
		&summary,
		&sentiment,
		&content.OwnerID,
		&content.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summary.Valid && sentiment.Valid {
		s := summary.String
		label := models.Sentiment(sentiment.String)
		content.Summary = &s
		content.Sentiment = &label
	}

	return &content, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
