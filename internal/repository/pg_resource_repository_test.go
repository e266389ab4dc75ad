package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visibuild/scimitar/internal/domain"
	"github.com/visibuild/scimitar/internal/filter"
)

var userColumns = []string{"id", "active", "display_name", "emails", "external_id", "user_name", "created_at", "updated_at"}

func testType(t *testing.T) *domain.ResourceType {
	t.Helper()

	rt := &domain.ResourceType{
		Name:     "User",
		Endpoint: "/Users",
		Table:    "scim_users",
		Attributes: domain.AttributeMap{
			"userName":    "user_name",
			"displayName": "display_name",
			"externalId":  "external_id",
			"emails":      "emails",
			"active":      "active",
		},
		Required:    []string{"user_name"},
		Unique:      map[string]string{"user_name": "userName"},
		JSONColumns: []string{"emails"},
	}

	registry := domain.NewRegistry()
	require.NoError(t, registry.Register(rt))

	return rt
}

func testRepo(t *testing.T) (*PgResourceRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewPgResourceRepository(mock), mock
}

func testRecord(rt *domain.ResourceType) *domain.Record {
	rec := domain.NewRecord()
	rec.ID = uuid.New()
	rec.Set("user_name", "jbartlet")
	rec.Set("display_name", "Jed Bartlet")
	rec.Set("active", true)
	rec.Set("emails", []any{map[string]any{"value": "jed@example.com"}})
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	return rec
}

func userRow(uid uuid.UUID) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(userColumns).
		AddRow(uid, true, "Jed Bartlet",
			[]byte(`[{"value":"jed@example.com"}]`),
			"ext-1", "jbartlet", now, now)
}

func TestCount(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)

	t.Run("without predicate", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scim_users`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

		total, err := repo.Count(context.Background(), rt, nil)

		require.NoError(t, err)
		assert.Equal(t, int64(42), total)
	})

	t.Run("with predicate", func(t *testing.T) {
		pred := &filter.Predicate{SQL: "LOWER(user_name) = LOWER($1)", Args: []any{"jbartlet"}}

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scim_users WHERE LOWER\(user_name\) = LOWER\(\$1\)`).
			WithArgs("jbartlet").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		total, err := repo.Count(context.Background(), rt, pred)

		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)
	uid := uuid.New()

	mock.ExpectQuery(`SELECT id, active, display_name, emails, external_id, user_name, created_at, updated_at FROM scim_users ORDER BY id ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(25, 50).
		WillReturnRows(userRow(uid))

	records, err := repo.List(context.Background(), rt, nil, 50, 25)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uid, records[0].ID)
	assert.Equal(t, "jbartlet", records[0].Get("user_name"))

	// JSON document columns are decoded on scan.
	emails, ok := records[0].Get("emails").([]any)
	require.True(t, ok)
	require.Len(t, emails, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)
	uid := uuid.New()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`FROM scim_users WHERE id = \$1`).
			WithArgs(uid).
			WillReturnRows(userRow(uid))

		rec, err := repo.Get(context.Background(), rt, uid)

		require.NoError(t, err)
		assert.Equal(t, uid, rec.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM scim_users WHERE id = \$1`).
			WithArgs(uid).
			WillReturnRows(pgxmock.NewRows(userColumns))

		_, err := repo.Get(context.Background(), rt, uid)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdate(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)
	uid := uuid.New()

	mock.ExpectQuery(`FROM scim_users WHERE id = \$1 FOR UPDATE`).
		WithArgs(uid).
		WillReturnRows(userRow(uid))

	rec, err := repo.GetForUpdate(context.Background(), rt, uid)

	require.NoError(t, err)
	assert.Equal(t, uid, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckUnique(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)

	t.Run("no conflict", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scim_users WHERE LOWER\(user_name\) = LOWER\(\$1\) AND id <> \$2`).
			WithArgs("jbartlet", rec.ID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

		require.NoError(t, repo.CheckUnique(context.Background(), rt, rec))
		assert.False(t, rec.HasFieldErrors())
	})

	t.Run("conflict tags the record", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scim_users WHERE LOWER\(user_name\) = LOWER\(\$1\) AND id <> \$2`).
			WithArgs("jbartlet", rec.ID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		err := repo.CheckUnique(context.Background(), rt, rec)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.True(t, rec.HasFieldErrorTag(domain.TagTaken))
		assert.Contains(t, rec.JoinedFieldErrors("; "), "userName has already been taken")
	})

	t.Run("nil unique value skipped", func(t *testing.T) {
		rec := domain.NewRecord()
		rec.ID = uuid.New()

		require.NoError(t, repo.CheckUnique(context.Background(), rt, rec))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)

	t.Run("success", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectExec(`INSERT INTO scim_users \(id, active, display_name, emails, external_id, user_name, created_at, updated_at\)`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Insert(context.Background(), rt, rec))
	})

	t.Run("unique violation becomes domain error", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectExec(`INSERT INTO scim_users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{
				Code:           "23505",
				ConstraintName: "scim_users_user_name_key",
			})

		err := repo.Insert(context.Background(), rt, rec)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.True(t, rec.HasFieldErrorTag(domain.TagTaken))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)

	t.Run("success", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectExec(`UPDATE scim_users SET active = \$1, display_name = \$2, emails = \$3, external_id = \$4, user_name = \$5, updated_at = \$6 WHERE id = \$7`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(context.Background(), rt, rec))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		rec := testRecord(rt)

		mock.ExpectExec(`UPDATE scim_users SET`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(context.Background(), rt, rec)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := testRepo(t)
	rt := testType(t)
	uid := uuid.New()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM scim_users WHERE id = \$1`).
			WithArgs(uid).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(context.Background(), rt, uid))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM scim_users WHERE id = \$1`).
			WithArgs(uid).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(context.Background(), rt, uid)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
