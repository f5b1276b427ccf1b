package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var userColumns = []string{"id", "email", "username", "password_hash", "created_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func strPtr(s string) *string { return &s }

func TestUserReadRepository_GetByEmailOrUsername(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Now().UTC()

	tests := []struct {
		name     string
		email    *string
		username *string
		setup    func(mock sqlmock.Sqlmock)
		want     *models.UserDB
		wantErr  bool
	}{
		{
			name:     "found by email",
			email:    strPtr("alice@example.com"),
			username: strPtr("alice@example.com"),
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
					WithArgs("alice@example.com", "alice@example.com").
					WillReturnRows(sqlmock.NewRows(userColumns).
						AddRow(1, "alice@example.com", "alice", "hash", createdAt))
			},
			want: &models.UserDB{ID: 1, Email: "alice@example.com", Username: "alice", PasswordHash: "hash", CreatedAt: createdAt},
		},
		{
			name:     "found by username only",
			username: strPtr("bob"),
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
					WithArgs(nil, "bob").
					WillReturnRows(sqlmock.NewRows(userColumns).
						AddRow(2, "bob@example.com", "bob", "hash", createdAt))
			},
			want: &models.UserDB{ID: 2, Email: "bob@example.com", Username: "bob", PasswordHash: "hash", CreatedAt: createdAt},
		},
		{
			name:     "not found",
			username: strPtr("ghost"),
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
					WithArgs(nil, "ghost").
					WillReturnRows(sqlmock.NewRows(userColumns))
			},
			want: nil,
		},
		{
			name:  "query error",
			email: strPtr("carol@example.com"),
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			repo := NewUserReadRepository(db, nil)
			got, err := repo.GetByEmailOrUsername(ctx, tt.email, tt.username)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserWriteRepository_Save(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Now().UTC()

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    *models.UserDB
		wantErr error
	}{
		{
			name: "inserted",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WithArgs("alice@example.com", "alice", "hash").
					WillReturnRows(sqlmock.NewRows(userColumns).
						AddRow(10, "alice@example.com", "alice", "hash", createdAt))
			},
			want: &models.UserDB{ID: 10, Email: "alice@example.com", Username: "alice", PasswordHash: "hash", CreatedAt: createdAt},
		},
		{
			name: "duplicate email",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
			},
			wantErr: models.ErrDuplicateEmail,
		},
		{
			name: "duplicate username",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
			},
			wantErr: models.ErrDuplicateUsername,
		},
		{
			name: "other database error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			repo := NewUserWriteRepository(db, nil)
			got, err := repo.Save(ctx, "alice@example.com", "alice", "hash")

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserWriteRepository_Save_KeepsEmailOutOfLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	originalLog := logger.Log
	logger.Log = zap.New(core).Sugar()
	defer func() { logger.Log = originalLog }()

	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "alice@example.com", "alice", "$2a$04$secret", time.Now()))

	_, err := NewUserWriteRepository(db, nil).Save(context.Background(), "alice@example.com", "alice", "$2a$04$secret")
	require.NoError(t, err)

	assert.Zero(t, logs.FilterLevelExact(zapcore.InfoLevel).Len(), "signups must not be logged at info level")
	entries := logs.FilterMessage("insert user").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ContextMap()["username"])
	for _, v := range entries[0].ContextMap() {
		assert.NotContains(t, fmt.Sprint(v), "alice@example.com")
		assert.NotContains(t, fmt.Sprint(v), "$2a$04$secret")
	}
}

func TestUserWriteRepository_UsesRequestTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice@example.com", "alice", "hash", time.Now()))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	txGetterCalled := false
	repo := NewUserWriteRepository(db, func(context.Context) *sqlx.Tx {
		txGetterCalled = true
		return tx
	})

	_, err = repo.Save(ctx, "alice@example.com", "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, txGetterCalled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies schema", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, Migrate(ctx, db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
			WillReturnError(errors.New("permission denied"))

		err := Migrate(ctx, db)
		assert.ErrorContains(t, err, "schema/001_users.sql")
	})
}
