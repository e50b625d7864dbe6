package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/config"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guardshare/internal/server/storage"
)

var t0 = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeBlobs struct {
	mu      sync.Mutex
	putErr  error
	getErr  error
	delErr  error
	gets    []string
	deleted []string
}

func (f *fakeBlobs) PresignPut(_ context.Context, key, _ string) (*storage.Presigned, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &storage.Presigned{URL: "https://blobs.test/put/" + key, ExpiresAt: t0.Add(15 * time.Minute)}, nil
}

func (f *fakeBlobs) PresignGet(_ context.Context, key, fileName string, _ bool) (*storage.Presigned, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	f.gets = append(f.gets, key)
	f.mu.Unlock()
	return &storage.Presigned{URL: "https://blobs.test/get/" + key + "?name=" + fileName, ExpiresAt: t0.Add(15 * time.Minute)}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, key)
	f.mu.Unlock()
	return f.delErr
}

type fixture struct {
	rm     repomanager.RepositoryManager
	blobs  *fakeBlobs
	users  *UserService
	files  *FileService
	links  *LinkService
	access *AccessService
	sweep  *Sweeper
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rm := repomanager.NewMemoryRepositoryManager()
	blobs := &fakeBlobs{}
	log := logging.Discard()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	now := t0
	clock := func() time.Time { return now }

	f := &fixture{
		rm:     rm,
		blobs:  blobs,
		users:  NewUserService(rm, cfg, log),
		files:  NewFileService(rm, blobs, log),
		links:  NewLinkService(rm, log),
		access: NewAccessService(rm, blobs, log),
		sweep:  NewSweeper(rm, time.Hour, 0, log),
		clock:  &now,
	}
	f.users.now = clock
	f.files.now = clock
	f.links.now = clock
	f.access.now = clock
	f.sweep.now = clock
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) user(t *testing.T, name string) *models.Requester {
	t.Helper()
	u, err := f.users.Register(context.Background(), name, "password1")
	require.NoError(t, err)
	return &models.Requester{ID: u.ID, Role: u.Role}
}

func (f *fixture) superuser(t *testing.T, name string) *models.Requester {
	t.Helper()
	require.NoError(t, f.users.EnsureSuperuser(context.Background(), name, "password1"))
	u, err := f.rm.Users(f.rm.Conn()).GetByUserName(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, common.RoleSuperuser, u.Role)
	return &models.Requester{ID: u.ID, Role: u.Role}
}

func (f *fixture) file(t *testing.T, owner *models.Requester, name string) *models.File {
	t.Helper()
	ctx := context.Background()
	task, err := f.files.PresignUpload(ctx, owner, "text/plain")
	require.NoError(t, err)
	file, err := f.files.Commit(ctx, owner, CommitFileInput{
		StorageKey:   task.StorageKey,
		DisplayName:  name,
		OriginalName: name + ".txt",
		SizeBytes:    42,
		MediaType:    "text/plain",
	})
	require.NoError(t, err)
	return file
}

func (f *fixture) link(t *testing.T, owner *models.Requester, file *models.File, in CreateLinkInput) *models.Link {
	t.Helper()
	in.FileID = file.ID
	if in.Name == "" {
		in.Name = "link-" + file.DisplayName
	}
	l, err := f.links.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return l
}

func int64p(v int64) *int64 { return &v }
