package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhejian/url-shortener/qrform/internal/model"
	"github.com/zhejian/url-shortener/qrform/internal/testutil"
)

var (
	testDB    *testutil.TestDB
	testCache *testutil.TestCache
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testutil.SetupTestDB(ctx)
	if err != nil {
		panic("failed to setup test database: " + err.Error())
	}

	testCache, err = testutil.SetupTestCache(ctx)
	if err != nil {
		panic("failed to setup test cache: " + err.Error())
	}

	code := m.Run()

	testCache.Teardown(ctx)
	testDB.Teardown(ctx)
	os.Exit(code)
}

func newResult(session, code string) *model.Result {
	return &model.Result{
		ID:        uuid.New(),
		SessionID: session,
		Code:      code,
		ShortURL:  "https://qr.example/r/" + code,
		Kind:      "url",
		Guest:     true,
	}
}

func insertResult(t *testing.T, ctx context.Context, code string) {
	t.Helper()
	_, err := testDB.Pool.Exec(ctx, `
		INSERT INTO qr_results (id, session_id, code, short_url, kind, guest)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), "sess-direct", code, "https://qr.example/r/"+code, "url", true)
	require.NoError(t, err)
}

func TestResultRepository_Create(t *testing.T) {
	repo := NewResultRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("success - guest url result", func(t *testing.T) {
		testDB.Cleanup(ctx)

		res := newResult("sess-1", "abc1234")
		require.NoError(t, repo.Create(ctx, res))
		assert.False(t, res.CreatedAt.IsZero(), "created_at is returned by the database")

		var count int
		testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM qr_results WHERE code = $1", "abc1234").Scan(&count)
		assert.Equal(t, 1, count)
	})

	t.Run("success - metadata is stored", func(t *testing.T) {
		testDB.Cleanup(ctx)

		title := "Menu"
		scans := 10
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		res := newResult("sess-1", "meta001")
		res.Kind = "wifi"
		res.Guest = false
		res.Title = &title
		res.MaxScans = &scans
		res.ExpiresAt = &expires
		require.NoError(t, repo.Create(ctx, res))

		got, err := repo.GetByCode(ctx, "meta001")
		require.NoError(t, err)
		assert.Equal(t, "wifi", got.Kind)
		require.NotNil(t, got.Title)
		assert.Equal(t, "Menu", *got.Title)
		require.NotNil(t, got.MaxScans)
		assert.Equal(t, 10, *got.MaxScans)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))
		assert.False(t, got.Guest)
	})

	t.Run("error - duplicate code", func(t *testing.T) {
		testDB.Cleanup(ctx)

		require.NoError(t, repo.Create(ctx, newResult("sess-1", "dup1234")))
		err := repo.Create(ctx, newResult("sess-2", "dup1234"))
		assert.ErrorIs(t, err, ErrCodeConflict)
	})
}

func TestResultRepository_GetByCode(t *testing.T) {
	repo := NewResultRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("success - existing code", func(t *testing.T) {
		testDB.Cleanup(ctx)
		insertResult(t, ctx, "get1234")

		got, err := repo.GetByCode(ctx, "get1234")
		require.NoError(t, err)
		assert.Equal(t, "get1234", got.Code)
		assert.Equal(t, "https://qr.example/r/get1234", got.ShortURL)
		assert.Nil(t, got.Title)
		assert.Nil(t, got.ExpiresAt)
		assert.Nil(t, got.MaxScans)
	})

	t.Run("error - not found", func(t *testing.T) {
		testDB.Cleanup(ctx)

		got, err := repo.GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)
	})
}

func TestResultRepository_ListBySession(t *testing.T) {
	repo := NewResultRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("newest first, scoped to session, limited", func(t *testing.T) {
		testDB.Cleanup(ctx)

		for i, code := range []string{"old0001", "mid0001", "new0001"} {
			_, err := testDB.Pool.Exec(ctx, `
				INSERT INTO qr_results (id, session_id, code, short_url, kind, created_at)
				VALUES ($1, $2, $3, $4, 'url', $5)
			`, uuid.New(), "sess-A", code, "https://qr.example/r/"+code, time.Now().Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Create(ctx, newResult("sess-B", "other01")))

		got, err := repo.ListBySession(ctx, "sess-A", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "new0001", got[0].Code)
		assert.Equal(t, "mid0001", got[1].Code)
	})

	t.Run("empty session", func(t *testing.T) {
		testDB.Cleanup(ctx)

		got, err := repo.ListBySession(ctx, "nobody", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestResultRepository_Delete(t *testing.T) {
	repo := NewResultRepository(testDB.Pool)
	ctx := context.Background()

	t.Run("success - delete existing", func(t *testing.T) {
		testDB.Cleanup(ctx)
		insertResult(t, ctx, "del1234")
		insertResult(t, ctx, "keep123")

		require.NoError(t, repo.Delete(ctx, "del1234"))

		var count int
		testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM qr_results").Scan(&count)
		assert.Equal(t, 1, count, "other results are untouched")
	})

	t.Run("error - delete non-existent", func(t *testing.T) {
		testDB.Cleanup(ctx)

		err := repo.Delete(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
