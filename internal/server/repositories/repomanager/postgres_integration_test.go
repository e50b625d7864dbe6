package repomanager

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

// setupPostgres starts PostgreSQL in Docker and returns a migrated manager.
// It is skipped unless TEST_INTEGRATION is set.
func setupPostgres(t *testing.T) RepositoryManager {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("guardshare_test"),
		postgres.WithUsername("guardshare"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("container terminate error: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.RunMigrations(ctx))
	return m
}

func seedLink(t *testing.T, m RepositoryManager, limit *int64, expiresAt *time.Time) (*models.File, *models.Link) {
	t.Helper()
	ctx := context.Background()

	u, err := m.Users(m.Conn()).Create(ctx, &models.User{UserName: "owner", PasswordHash: []byte("x"), Role: common.RoleUser, IsActive: true})
	require.NoError(t, err)

	f, err := m.Files(m.Conn()).Create(ctx, &models.File{OwnerID: u.ID, StorageKey: "k1", DisplayName: "doc",
		OriginalName: "doc.txt", MediaType: "text/plain"})
	require.NoError(t, err)

	kind := models.ExpirationNone
	if expiresAt != nil {
		kind = models.ExpirationFixedDate
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	l := &models.Link{ID: "0123456789abcdef0123456789abcdef", Name: "share", FileID: f.ID, OwnerID: u.ID,
		ExpirationKind: kind, ExpiresAt: expiresAt, AccessLimit: limit, Verification: models.NoVerification(),
		Audience: models.SelectedUsersAudience(u.ID), IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return m.Links(tx).Create(ctx, l)
	}))
	return f, l
}

func TestPostgres_LinkRoundTrip(t *testing.T) {
	m := setupPostgres(t)
	ctx := context.Background()
	limit := int64(3)
	_, l := seedLink(t, m, &limit, nil)

	got, err := m.Links(m.Conn()).GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Audience.AllowedUsers, got.Audience.AllowedUsers)
	require.NotNil(t, got.AccessLimit)
	assert.Equal(t, int64(3), *got.AccessLimit)
	assert.Nil(t, got.ExpiresAt)

	err = m.Links(m.Conn()).Create(ctx, &models.Link{ID: "ffffffffffffffffffffffffffffffff", Name: "share",
		FileID: l.FileID, OwnerID: l.OwnerID, ExpirationKind: models.ExpirationNone, IsActive: true,
		Verification: models.NoVerification(), Audience: models.PublicAudience()})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestPostgres_ConcurrentIncrementsRespectLimit(t *testing.T) {
	m := setupPostgres(t)
	ctx := context.Background()
	limit := int64(5)
	_, l := seedLink(t, m, &limit, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				if _, err := m.Links(tx).IncrementAccessCount(ctx, l.ID, time.Now()); err != nil {
					return err
				}
				return m.Links(tx).AppendAccessLog(ctx, &models.AccessLogEntry{LinkID: l.ID, Mode: models.AccessView, AccessedAt: time.Now()})
			})
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else if !errors.Is(err, common.ErrConditionFailed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	got, err := m.Links(m.Conn()).GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.CurrentAccessCount)

	entries, err := m.Links(m.Conn()).AccessLog(ctx, l.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestPostgres_AccessLogTrimmed(t *testing.T) {
	m := setupPostgres(t)
	ctx := context.Background()
	_, l := seedLink(t, m, nil, nil)

	for i := 0; i < models.MaxAccessLogEntries+5; i++ {
		require.NoError(t, m.Links(m.Conn()).AppendAccessLog(ctx, &models.AccessLogEntry{
			LinkID: l.ID, Mode: models.AccessView, AccessedAt: time.Now(),
		}))
	}

	entries, err := m.Links(m.Conn()).AccessLog(ctx, l.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, models.MaxAccessLogEntries)
	assert.Equal(t, int64(models.MaxAccessLogEntries+5), entries[0].ID)
	assert.Equal(t, int64(6), entries[len(entries)-1].ID)
}

func TestPostgres_SweepAndCascade(t *testing.T) {
	m := setupPostgres(t)
	ctx := context.Background()
	exp := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
	f, l := seedLink(t, m, nil, &exp)

	_, err := m.Links(m.Conn()).IncrementAccessCount(ctx, l.ID, time.Now())
	assert.ErrorIs(t, err, common.ErrConditionFailed, "expired links are not counted")

	now := time.Now()
	n, err := m.Links(m.Conn()).DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.Links(m.Conn()).DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, m.Files(m.Conn()).SoftDelete(ctx, f.ID, now))
	n, err = m.Links(m.Conn()).DeleteInactiveBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
