package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
)

// pgUniqueViolation is the SQLSTATE raised for a UNIQUE constraint violation.
const pgUniqueViolation = "23505"

// UserReadRepository reads users from PostgreSQL.
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewUserReadRepository creates a read repository. txGetter may be nil.
func NewUserReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// GetByEmailOrUsername returns the user whose email equals email or whose
// username equals username. A nil argument is ignored. When both match
// different rows the email match wins. Returns nil, nil when nothing matches.
func (r *UserReadRepository) GetByEmailOrUsername(ctx context.Context, email, username *string) (*models.UserDB, error) {
	const query = `
		SELECT id, email, username, password_hash, created_at
		FROM users
		WHERE ($1::VARCHAR IS NOT NULL AND email = $1::VARCHAR)
		   OR ($2::VARCHAR IS NOT NULL AND username = $2::VARCHAR)
		ORDER BY (email = $1::VARCHAR) DESC NULLS LAST
		LIMIT 1
	`

	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, email, username)

	logger.Log.Debugw("select user",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{email, username},
		"found", err == nil,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UserWriteRepository inserts users into PostgreSQL.
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewUserWriteRepository creates a write repository. txGetter may be nil.
func NewUserWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts a new user and returns the stored row. A unique constraint
// violation is reported as models.ErrDuplicateEmail or models.ErrDuplicateUsername.
func (r *UserWriteRepository) Save(ctx context.Context, email, username, passwordHash string) (*models.UserDB, error) {
	const query = `
		INSERT INTO users (email, username, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, email, username, password_hash, created_at
	`

	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, email, username, passwordHash)

	logger.Log.Debugw("insert user",
		"query", strings.Join(strings.Fields(query), " "),
		"username", username,
		"result", user.ID,
		"error", err,
	)

	if err != nil {
		return nil, mapUniqueViolation(err)
	}

	return &user, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return models.ErrDuplicateEmail
	}
	return models.ErrDuplicateUsername
}

// executor returns the request transaction when one is bound to ctx, the pool otherwise.
func executor(ctx context.Context, db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}
