package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/cryptox"
	"github.com/dmitrijs2005/guardshare/internal/server/access"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

func TestLinkCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	file := f.file(t, owner, "doc")

	tests := []struct {
		name string
		in   CreateLinkInput
	}{
		{name: "missing name", in: CreateLinkInput{Name: "  ", FileID: file.ID}},
		{name: "long name", in: CreateLinkInput{Name: strings.Repeat("x", 101), FileID: file.ID}},
		{name: "long description", in: CreateLinkInput{Name: "n", Description: strings.Repeat("d", 501), FileID: file.ID}},
		{name: "missing file", in: CreateLinkInput{Name: "n"}},
		{name: "unknown file", in: CreateLinkInput{Name: "n", FileID: "nope"}},
		{name: "zero duration", in: CreateLinkInput{Name: "n", FileID: file.ID, Expiration: models.ExpireAfter(0)}},
		{name: "past date", in: CreateLinkInput{Name: "n", FileID: file.ID, Expiration: models.ExpireAt(t0)}},
		{name: "zero limit", in: CreateLinkInput{Name: "n", FileID: file.ID, AccessLimit: int64p(0)}},
		{name: "password without value", in: CreateLinkInput{Name: "n", FileID: file.ID, VerificationKind: models.VerificationPassword}},
		{name: "username without value", in: CreateLinkInput{Name: "n", FileID: file.ID, VerificationKind: models.VerificationUsername}},
		{name: "unknown verification", in: CreateLinkInput{Name: "n", FileID: file.ID, VerificationKind: "otp", VerificationValue: "1"}},
		{name: "empty selection", in: CreateLinkInput{Name: "n", FileID: file.ID, AudienceScope: models.AudienceSelected, AllowedUsers: []string{""}}},
		{name: "unknown audience", in: CreateLinkInput{Name: "n", FileID: file.ID, AudienceScope: "friends"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.links.Create(ctx, owner, tt.in)
			require.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestLinkCreate_ResolvesPolicies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	file := f.file(t, owner, "doc")
	u1 := f.user(t, "reader1")
	u2 := f.user(t, "reader2")

	l, err := f.links.Create(ctx, owner, CreateLinkInput{
		Name:              " quarterly ",
		FileID:            file.ID,
		Expiration:        models.ExpireAfter(3600 * time.Second),
		VerificationKind:  models.VerificationPassword,
		VerificationValue: "pw",
		AudienceScope:     models.AudienceSelected,
		AllowedUsers:      []string{u1.ID, u1.ID, u2.ID},
	})
	require.NoError(t, err)

	assert.Len(t, l.ID, 32)
	assert.Equal(t, "quarterly", l.Name)
	assert.Equal(t, owner.ID, l.OwnerID)
	assert.Equal(t, models.ExpirationDuration, l.ExpirationKind)
	require.NotNil(t, l.ExpiresAt)
	assert.Equal(t, t0.Add(time.Hour), *l.ExpiresAt)
	assert.True(t, l.IsActive)
	assert.False(t, l.DownloadAllowed)
	assert.Equal(t, []string{u1.ID, u2.ID}, l.Audience.AllowedUsers)
	assert.NotEqual(t, "pw", l.Verification.Value, "password is stored hashed")
	assert.True(t, cryptox.CompareSecret(l.Verification.Value, []byte("pw")))

	f.advance(24 * time.Hour)
	stored, err := f.links.Get(ctx, owner, l.ID)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), *stored.ExpiresAt, "expiry is fixed at creation")

	at := t0.Add(48 * time.Hour)
	l2 := f.link(t, owner, file, CreateLinkInput{Name: "fixed", Expiration: models.ExpireAt(at)})
	assert.Equal(t, at, *l2.ExpiresAt)

	l3 := f.link(t, owner, file, CreateLinkInput{Name: "forever"})
	assert.Nil(t, l3.ExpiresAt)
	assert.Equal(t, models.ExpirationNone, l3.ExpirationKind)
}

func TestLinkCreate_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	admin := f.superuser(t, "admin")
	file := f.file(t, owner, "doc")

	_, err := f.links.Create(ctx, nil, CreateLinkInput{Name: "n", FileID: file.ID})
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.links.Create(ctx, other, CreateLinkInput{Name: "n", FileID: file.ID})
	require.ErrorIs(t, err, common.ErrorForbidden)

	l, err := f.links.Create(ctx, admin, CreateLinkInput{Name: "n", FileID: file.ID})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, l.OwnerID, "the file owner owns links created by superusers")

	_, err = f.links.Create(ctx, owner, CreateLinkInput{Name: "n", FileID: file.ID})
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestLinkCreate_InactiveFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	file := f.file(t, owner, "doc")
	require.NoError(t, f.files.Delete(ctx, owner, file.ID))

	_, err := f.links.Create(ctx, owner, CreateLinkInput{Name: "n", FileID: file.ID})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestLinkToggleAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	admin := f.superuser(t, "admin")
	l := f.link(t, owner, f.file(t, owner, "doc"), CreateLinkInput{})

	_, err := f.links.Toggle(ctx, other, l.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)

	got, err := f.links.Toggle(ctx, owner, l.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = f.links.Toggle(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.ErrorIs(t, f.links.Delete(ctx, other, l.ID), common.ErrorNotFound)
	require.NoError(t, f.links.Delete(ctx, owner, l.ID))
	_, err = f.links.Get(ctx, owner, l.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLinkListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	admin := f.superuser(t, "admin")
	file := f.file(t, owner, "doc")
	otherFile := f.file(t, other, "doc")

	for i := 0; i < 12; i++ {
		f.advance(time.Minute)
		f.link(t, owner, file, CreateLinkInput{Name: "own-" + string(rune('a'+i))})
	}
	f.link(t, other, otherFile, CreateLinkInput{Name: "foreign"})

	links, total, err := f.links.List(ctx, owner, models.ListParams{Search: "OWN-C"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "own-c", links[0].Name)

	recent, err := f.links.Recent(ctx, owner)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "own-l", recent[0].Name)

	_, _, err = f.links.ListAll(ctx, owner, models.ListParams{})
	require.ErrorIs(t, err, common.ErrorForbidden)

	_, total, err = f.links.ListAll(ctx, admin, models.ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 13, total)

	_, _, err = f.links.List(ctx, nil, models.ListParams{})
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLinkAccessLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	other := f.user(t, "other")
	l := f.link(t, owner, f.file(t, owner, "doc"), CreateLinkInput{})

	for i := 0; i < 3; i++ {
		f.advance(time.Second)
		_, err := f.access.View(ctx, AccessRequest{LinkID: l.ID, SourceAddress: "1.2.3.4"})
		require.NoError(t, err)
	}

	entries, err := f.links.AccessLog(ctx, owner, l.ID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].AccessedAt.After(entries[1].AccessedAt), "newest first")

	_, err = f.links.AccessLog(ctx, other, l.ID, 0)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLinkCreate_LongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	pass := strings.Repeat("p", 80)

	l := f.link(t, owner, f.file(t, owner, "doc"), CreateLinkInput{
		VerificationKind:  models.VerificationPassword,
		VerificationValue: pass,
	})

	_, err := f.access.View(ctx, AccessRequest{LinkID: l.ID, Credentials: access.Credentials{Password: pass[:72]}})
	require.ErrorIs(t, err, access.ErrInvalidCredentials)

	_, err = f.access.View(ctx, AccessRequest{LinkID: l.ID, Credentials: access.Credentials{Password: pass}})
	require.NoError(t, err)
}

func TestLinkCreate_SelectedUsersMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.superuser(t, "admin")
	owner := f.user(t, "owner")
	reader := f.user(t, "reader")
	gone := f.user(t, "gone")
	require.NoError(t, f.users.Deactivate(ctx, admin, gone.ID))
	file := f.file(t, owner, "doc")

	for name, ids := range map[string][]string{
		"unknown id":     {reader.ID, "not-a-user"},
		"deactivated":    {gone.ID},
		"malformed uuid": {"123"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.links.Create(ctx, owner, CreateLinkInput{
				Name: "n-" + name, FileID: file.ID, AudienceScope: models.AudienceSelected, AllowedUsers: ids,
			})
			require.ErrorIs(t, err, common.ErrorValidation)
			assert.Contains(t, err.Error(), "unknown user")
		})
	}

	links, total, err := f.links.List(ctx, owner, models.ListParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, links)
}
