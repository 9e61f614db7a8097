package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

var userRowColumns = []string{"user_id", "username", "email", "hashed_password", "is_active", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user with null email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("alice", "", "hash")

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID, "alice", sql.NullString{}, "hash", true, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		err := repo.Create(ctx, models.NewUser("alice", "a@example.com", "hash"))
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})
}

func TestUserRepository_Find(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	t.Run("found by username", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users WHERE username = \\$1").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "alice", "a@example.com", "hash", true, now, now))

		user, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "a@example.com", user.Email)
		assert.True(t, user.IsActive)
	})

	t.Run("missing user is nil without error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users WHERE user_id = \\$1").
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		user, err := repo.FindByID(ctx, id)
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("driver error surfaces", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM users").WillReturnError(sql.ErrConnDone)

		_, err := repo.FindByID(ctx, id)
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites mutable columns", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("alice", "a@example.com", "hash")
		before := user.UpdatedAt

		mock.ExpectExec("UPDATE users SET (.+) WHERE user_id = \\$1").
			WithArgs(user.ID, "alice", sql.NullString{String: "a@example.com", Valid: true}, "hash", true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, user))
		assert.False(t, user.UpdatedAt.Before(before))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("taken username maps to ErrDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		err := repo.Update(ctx, models.NewUser("bob", "", "hash"))
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	t.Run("missing user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, models.NewUser("ghost", "", "hash"))
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("deletes", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM users WHERE user_id = \\$1").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, id), repositories.ErrNotFound)
	})
}

func TestRoleRepository(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()

	t.Run("role names for user", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT r.name FROM roles r JOIN user_roles").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("admin").AddRow("user"))

		names, err := repo.RoleNamesForUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin", "user"}, names)
	})

	t.Run("user without roles gets empty slice", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM roles r").WillReturnRows(sqlmock.NewRows([]string{"name"}))

		names, err := repo.RoleNamesForUser(ctx, userID)
		require.NoError(t, err)
		assert.NotNil(t, names)
		assert.Empty(t, names)
	})

	t.Run("find by name missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM roles WHERE name = \\$1").
			WithArgs("guest").
			WillReturnRows(sqlmock.NewRows([]string{"role_id", "name", "description", "created_at"}))

		role, err := repo.FindByName(ctx, "guest")
		assert.NoError(t, err)
		assert.Nil(t, role)
	})

	t.Run("assign is idempotent insert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO user_roles (.+) ON CONFLICT").
			WithArgs(userID, roleID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.Assign(ctx, userID, roleID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete missing role", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM roles").WithArgs(roleID).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, roleID)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestLoginHistoryRepository(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	db, mock := newMockDB(t)
	repo := NewLoginHistoryRepository(db, zap.NewNop())

	entry := models.NewLoginHistory(userID, "curl/8", "10.0.0.1")
	mock.ExpectExec("INSERT INTO login_history").
		WithArgs(entry.ID, userID, sql.NullString{String: "curl/8", Valid: true}, sql.NullString{String: "10.0.0.1", Valid: true}, entry.LoginAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Record(ctx, entry))

	mock.ExpectQuery("FROM login_history").
		WithArgs(userID, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_agent", "ip_address", "login_at"}).
			AddRow(entry.ID.String(), userID.String(), "curl/8", "10.0.0.1", entry.LoginAt))

	entries, err := repo.ListByUser(ctx, userID, 20, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "curl/8", entries[0].UserAgent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSocialAccountRepository(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("find unlinked", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSocialAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM social_accounts").
			WithArgs("google", "sub-1").
			WillReturnError(sql.ErrNoRows)

		acc, err := repo.Find(ctx, "google", "sub-1")
		assert.NoError(t, err)
		assert.Nil(t, acc)
	})

	t.Run("unlink reports removal", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSocialAccountRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM social_accounts").
			WithArgs(userID, "yandex").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM social_accounts").
			WithArgs(userID, "yandex").
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := repo.Unlink(ctx, userID, "yandex")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = repo.Unlink(ctx, userID, "yandex")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestTransactionManager(t *testing.T) {
	ctx := context.Background()

	t.Run("repositories run inside the transaction and commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		users := NewUserRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			return users.Create(ctx, models.NewUser("bob", "", "hash"))
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := Wrap(sqlDB, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.NoError(t, db.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, db.HealthCheck(context.Background()))
}
