package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmssync/internal/model"
	"cmssync/internal/repository"
)

var (
	pageKey     = model.ContentKey{ContentType: "PageContent", ContentID: "123"}
	versionCols = []string{"id", "content_type", "content_id", "version_number", "payload", "changes", "author_id", "created_at", "is_active", "metadata"}
)

func TestVersionPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("assigns max+1 and activates", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs("PageContent", "123").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COALESCE\\(MAX\\(version_number\\), 0\\)").
			WithArgs("PageContent", "123").
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
		mock.ExpectExec("UPDATE content_versions SET is_active = FALSE").
			WithArgs("PageContent", "123").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO content_versions").
			WithArgs(sqlmock.AnyArg(), "PageContent", "123", 3, sqlmock.AnyArg(), sqlmock.AnyArg(), "author-a", now, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(versionCols).
				AddRow("v-3", "PageContent", "123", 3, []byte(`{"title":"x"}`), []byte(`[{"field":"title","oldValue":"w","newValue":"x"}]`), "author-a", now, true, nil))
		mock.ExpectCommit()

		v, err := repo.Create(ctx, &model.Version{
			ContentType: "PageContent",
			ContentID:   "123",
			Payload:     map[string]any{"title": "x"},
			Changes:     []model.Change{{Field: "title", OldValue: "w", NewValue: "x"}},
			AuthorID:    "author-a",
			CreatedAt:   now,
		})

		require.NoError(t, err)
		assert.Equal(t, 3, v.VersionNumber)
		assert.True(t, v.IsActive)
		assert.Equal(t, "x", v.Payload["title"])
		require.Len(t, v.Changes, 1)
		assert.Equal(t, "title", v.Changes[0].Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when insert fails", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
		mock.ExpectExec("UPDATE content_versions SET is_active").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO content_versions").WillReturnError(errors.New("unique violation"))
		mock.ExpectRollback()

		v, err := repo.Create(ctx, &model.Version{ContentType: "PageContent", ContentID: "123", AuthorID: "a"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "insert version: unique violation")
		assert.Nil(t, v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVersionPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM content_versions").
		WithArgs("PageContent", "123").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) NULL::jsonb (.+) FROM content_versions (.+) ORDER BY version_number DESC").
		WithArgs("PageContent", "123", 10, 0).
		WillReturnRows(sqlmock.NewRows(versionCols).
			AddRow("v-2", "PageContent", "123", 2, nil, []byte(`[]`), "b", time.Now(), true, nil).
			AddRow("v-1", "PageContent", "123", 1, nil, []byte(`[]`), "a", time.Now(), false, nil))

	res, err := repo.List(ctx, pageKey, repository.PageQuery{Limit: 10, Offset: 0}, false)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Items[0].VersionNumber)
	assert.Nil(t, res.Items[0].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionPostgres_FindByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM content_versions WHERE (.+) version_number = ").
			WithArgs("PageContent", "123", 1).
			WillReturnRows(sqlmock.NewRows(versionCols).
				AddRow("v-1", "PageContent", "123", 1, []byte(`{"a":1}`), nil, "a", time.Now(), false, []byte(`{"source":"restore"}`)))

		v, err := repo.FindByNumber(ctx, pageKey, 1)

		require.NoError(t, err)
		assert.Equal(t, float64(1), v.Payload["a"])
		assert.Equal(t, "restore", v.Metadata["source"])
		assert.Empty(t, v.Changes)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM content_versions WHERE").
			WithArgs("PageContent", "123", 7).
			WillReturnError(sql.ErrNoRows)

		v, err := repo.FindByNumber(ctx, pageKey, 7)

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, v)
	})
}

func TestVersionPostgres_PurgeOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewVersionPostgres(db)
	cutoff := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec("DELETE FROM content_versions WHERE NOT is_active AND created_at < ").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeOlderThan(context.Background(), cutoff)

	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
