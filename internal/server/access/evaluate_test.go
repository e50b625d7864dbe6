package access

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/cryptox"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newFile() *models.File {
	return &models.File{ID: "f1", OwnerID: "owner", IsActive: true}
}

func newLink() *models.Link {
	return &models.Link{
		ID:             "l1",
		FileID:         "f1",
		OwnerID:        "owner",
		ExpirationKind: models.ExpirationNone,
		Verification:   models.NoVerification(),
		Audience:       models.PublicAudience(),
		IsActive:       true,
	}
}

func int64p(v int64) *int64 { return &v }

func timep(t time.Time) *time.Time { return &t }

func TestIsExpired_Boundary(t *testing.T) {
	l := newLink()
	assert.False(t, IsExpired(l, now), "no expiry never expires")

	l.ExpiresAt = timep(now)
	assert.False(t, IsExpired(l, now), "the expiry instant is still valid")
	assert.True(t, IsExpired(l, now.Add(time.Nanosecond)))
	assert.False(t, IsExpired(l, now.Add(-time.Hour)))
}

func TestIsLimitReached(t *testing.T) {
	l := newLink()
	assert.False(t, IsLimitReached(l), "nil limit is unlimited")

	l.AccessLimit = int64p(3)
	l.CurrentAccessCount = 2
	assert.False(t, IsLimitReached(l))
	l.CurrentAccessCount = 3
	assert.True(t, IsLimitReached(l))
	l.CurrentAccessCount = 4
	assert.True(t, IsLimitReached(l))
}

func TestIsAuthorized(t *testing.T) {
	a := &models.Requester{ID: "a", Role: common.RoleUser}
	b := &models.Requester{ID: "b", Role: common.RoleUser}
	c := &models.Requester{ID: "c", Role: common.RoleUser}
	root := &models.Requester{ID: "root", Role: common.RoleSuperuser}

	l := newLink()
	assert.True(t, IsAuthorized(l, nil))
	assert.True(t, IsAuthorized(l, a))

	l.Audience = models.AuthenticatedAudience()
	assert.False(t, IsAuthorized(l, nil))
	assert.True(t, IsAuthorized(l, c))

	l.Audience = models.SelectedUsersAudience("a", "b")
	assert.True(t, IsAuthorized(l, a))
	assert.True(t, IsAuthorized(l, b))
	assert.False(t, IsAuthorized(l, c))
	assert.False(t, IsAuthorized(l, nil))
	assert.False(t, IsAuthorized(l, root), "superusers get no bypass")

	l.Audience = models.Audience{Scope: "bogus"}
	assert.False(t, IsAuthorized(l, a))
}

func TestIsVerified(t *testing.T) {
	hash, err := cryptox.HashSecret([]byte("hunter2"))
	require.NoError(t, err)

	l := newLink()
	assert.True(t, IsVerified(l, Credentials{}))

	l.Verification = models.PasswordVerification(hash)
	assert.True(t, IsVerified(l, Credentials{Password: "hunter2"}))
	assert.False(t, IsVerified(l, Credentials{Password: "hunter3"}))
	assert.False(t, IsVerified(l, Credentials{}))

	l.Verification = models.UsernameVerification("Alice")
	assert.True(t, IsVerified(l, Credentials{Username: "Alice"}))
	assert.False(t, IsVerified(l, Credentials{Username: "alice"}), "comparison is case-sensitive")
	assert.False(t, IsVerified(l, Credentials{Username: " Alice"}))
	assert.False(t, IsVerified(l, Credentials{}))
}

func TestEvaluate_Table(t *testing.T) {
	alice := &models.Requester{ID: "alice", Role: common.RoleUser}
	owner := &models.Requester{ID: "owner", Role: common.RoleUser}

	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr error
	}{
		{name: "allowed", mutate: func(in *Input) {}},
		{name: "missing link", mutate: func(in *Input) { in.Link = nil }, wantErr: ErrNotFound},
		{name: "inactive link", mutate: func(in *Input) { in.Link.IsActive = false }, wantErr: ErrNotFound},
		{name: "missing file", mutate: func(in *Input) { in.File = nil }, wantErr: ErrNotFound},
		{name: "soft-deleted file", mutate: func(in *Input) { in.File.IsActive = false }, wantErr: ErrNotFound},
		{
			name:    "soft-deleted file on download",
			mutate:  func(in *Input) { in.File.IsActive = false; in.Mode = models.AccessDownload; in.Link.DownloadAllowed = true },
			wantErr: ErrNotFound,
		},
		{name: "download not allowed", mutate: func(in *Input) { in.Mode = models.AccessDownload }, wantErr: ErrForbidden},
		{
			name:    "download not allowed for owner",
			mutate:  func(in *Input) { in.Mode = models.AccessDownload; in.Requester = owner },
			wantErr: ErrDownloadNotAllowed,
		},
		{name: "download allowed", mutate: func(in *Input) { in.Mode = models.AccessDownload; in.Link.DownloadAllowed = true }},
		{name: "expired", mutate: func(in *Input) { in.Link.ExpiresAt = timep(now.Add(-time.Second)) }, wantErr: ErrExpired},
		{name: "at expiry instant", mutate: func(in *Input) { in.Link.ExpiresAt = timep(now) }},
		{name: "limit reached", mutate: func(in *Input) { in.Link.AccessLimit = int64p(1); in.Link.CurrentAccessCount = 1 }, wantErr: ErrLimitReached},
		{name: "anonymous on users scope", mutate: func(in *Input) { in.Link.Audience = models.AuthenticatedAudience() }, wantErr: ErrAuthRequired},
		{
			name:    "outsider on selected scope",
			mutate:  func(in *Input) { in.Link.Audience = models.SelectedUsersAudience("bob"); in.Requester = alice },
			wantErr: ErrNotPermitted,
		},
		{
			name:    "wrong username",
			mutate:  func(in *Input) { in.Link.Verification = models.UsernameVerification("bob"); in.Credentials.Username = "alice" },
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Link: newLink(), File: newFile(), Mode: models.AccessView, Now: now}
			tt.mutate(&in)

			err := Evaluate(in)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestEvaluate_OrderIsPinned(t *testing.T) {
	t.Run("expired and over limit reports expired", func(t *testing.T) {
		l := newLink()
		l.ExpiresAt = timep(now.Add(-time.Minute))
		l.AccessLimit = int64p(1)
		l.CurrentAccessCount = 5

		err := Evaluate(Input{Link: l, File: newFile(), Mode: models.AccessView, Now: now})
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("download disallowed and expired reports forbidden", func(t *testing.T) {
		l := newLink()
		l.ExpiresAt = timep(now.Add(-time.Minute))

		err := Evaluate(Input{Link: l, File: newFile(), Mode: models.AccessDownload, Now: now})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("over limit and anonymous reports limit", func(t *testing.T) {
		l := newLink()
		l.AccessLimit = int64p(1)
		l.CurrentAccessCount = 1
		l.Audience = models.AuthenticatedAudience()

		err := Evaluate(Input{Link: l, File: newFile(), Mode: models.AccessView, Now: now})
		assert.ErrorIs(t, err, ErrLimitReached)
	})

	t.Run("unauthorized and unverified reports audience", func(t *testing.T) {
		l := newLink()
		l.Audience = models.SelectedUsersAudience("bob")
		l.Verification = models.UsernameVerification("bob")

		err := Evaluate(Input{Link: l, File: newFile(), Mode: models.AccessView, Now: now})
		assert.ErrorIs(t, err, ErrAuthRequired)
	})
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	l := newLink()
	l.AccessLimit = int64p(2)
	before := *l

	require.NoError(t, Evaluate(Input{Link: l, File: newFile(), Mode: models.AccessView, Now: now}))
	assert.Equal(t, before, *l)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "allowed", Kind(nil))
	assert.Equal(t, "not_found", Kind(ErrNotFound))
	assert.Equal(t, "forbidden", Kind(ErrDownloadNotAllowed))
	assert.Equal(t, "forbidden", Kind(ErrNotPermitted))
	assert.Equal(t, "auth_required", Kind(ErrAuthRequired))
	assert.Equal(t, "expired", Kind(ErrExpired))
	assert.Equal(t, "limit_reached", Kind(ErrLimitReached))
	assert.Equal(t, "invalid_credentials", Kind(ErrInvalidCredentials))
	assert.Equal(t, "internal", Kind(errors.New("boom")))

	assert.True(t, IsDecision(ErrExpired))
	assert.False(t, IsDecision(nil))
	assert.False(t, IsDecision(errors.New("boom")))
}
