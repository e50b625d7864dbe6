package models

import (
	"slices"
	"time"
)

// MaxAccessLogEntries caps the per-link access log; older entries are evicted first.
const MaxAccessLogEntries = 1000

type ExpirationKind string

const (
	ExpirationNone      ExpirationKind = "none"
	ExpirationDuration  ExpirationKind = "duration"
	ExpirationFixedDate ExpirationKind = "fixed_date"
)

// ExpirationPolicy is the expiration requested when a link is created.
// It is resolved exactly once into Link.ExpiresAt; only the kind is kept
// afterwards. Build values with NoExpiration, ExpireAfter or ExpireAt.
type ExpirationPolicy struct {
	kind  ExpirationKind
	after time.Duration
	at    time.Time
}

func NoExpiration() ExpirationPolicy {
	return ExpirationPolicy{kind: ExpirationNone}
}

func ExpireAfter(d time.Duration) ExpirationPolicy {
	return ExpirationPolicy{kind: ExpirationDuration, after: d}
}

func ExpireAt(t time.Time) ExpirationPolicy {
	return ExpirationPolicy{kind: ExpirationFixedDate, at: t}
}

// Kind returns the policy kind. The zero value behaves as ExpirationNone.
func (p ExpirationPolicy) Kind() ExpirationKind {
	if p.kind == "" {
		return ExpirationNone
	}
	return p.kind
}

func (p ExpirationPolicy) After() time.Duration { return p.after }

func (p ExpirationPolicy) At() time.Time { return p.at }

// Resolve computes the absolute expiry relative to createdAt.
// It returns nil for ExpirationNone.
func (p ExpirationPolicy) Resolve(createdAt time.Time) *time.Time {
	switch p.Kind() {
	case ExpirationDuration:
		t := createdAt.Add(p.after)
		return &t
	case ExpirationFixedDate:
		t := p.at
		return &t
	default:
		return nil
	}
}

type VerificationKind string

const (
	VerificationNone     VerificationKind = "none"
	VerificationPassword VerificationKind = "password"
	VerificationUsername VerificationKind = "username"
)

// Verification is the secondary check a requester must pass.
// For VerificationPassword, Value holds a bcrypt hash; for
// VerificationUsername it holds the expected username verbatim.
type Verification struct {
	Kind  VerificationKind
	Value string
}

func NoVerification() Verification {
	return Verification{Kind: VerificationNone}
}

func PasswordVerification(hash string) Verification {
	return Verification{Kind: VerificationPassword, Value: hash}
}

func UsernameVerification(expected string) Verification {
	return Verification{Kind: VerificationUsername, Value: expected}
}

type AudienceScope string

const (
	AudiencePublic        AudienceScope = "public"
	AudienceAuthenticated AudienceScope = "users"
	AudienceSelected      AudienceScope = "selected"
)

// Audience decides who may use a link. AllowedUsers is only meaningful
// for AudienceSelected.
type Audience struct {
	Scope        AudienceScope
	AllowedUsers []string
}

func PublicAudience() Audience {
	return Audience{Scope: AudiencePublic}
}

func AuthenticatedAudience() Audience {
	return Audience{Scope: AudienceAuthenticated}
}

func SelectedUsersAudience(userIDs ...string) Audience {
	return Audience{Scope: AudienceSelected, AllowedUsers: userIDs}
}

func (a Audience) Allows(userID string) bool {
	return slices.Contains(a.AllowedUsers, userID)
}

// Link is a shareable capability over one File with its own policy and usage state.
type Link struct {
	// ID is 32 hex characters generated from crypto/rand.
	ID          string
	Name        string
	Description string
	FileID      string
	OwnerID     string

	ExpirationKind ExpirationKind
	// ExpiresAt is nil exactly when ExpirationKind is ExpirationNone.
	ExpiresAt *time.Time

	// AccessLimit is nil for unlimited links.
	AccessLimit        *int64
	CurrentAccessCount int64

	Verification    Verification
	Audience        Audience
	DownloadAllowed bool
	IsActive        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type AccessMode string

const (
	AccessView     AccessMode = "view"
	AccessDownload AccessMode = "download"
)

// AccessLogEntry records one granted access.
type AccessLogEntry struct {
	ID     int64
	LinkID string
	// RequesterID is nil for anonymous access.
	RequesterID   *string
	SourceAddress string
	UserAgent     string
	Mode          AccessMode
	AccessedAt    time.Time
}
