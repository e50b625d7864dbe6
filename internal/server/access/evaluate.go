// Package access decides whether a link grants view or download access.
//
// The evaluators are pure functions of their arguments; Evaluate composes
// them in a fixed order and returns the first failing check.
package access

import (
	"time"

	"github.com/dmitrijs2005/guardshare/internal/cryptox"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

// Credentials are the verification values supplied with a request.
type Credentials struct {
	Password string
	Username string
}

// Input is a snapshot of everything a decision depends on.
type Input struct {
	// Link and File may be nil when the lookup found nothing.
	Link        *models.Link
	File        *models.File
	Requester   *models.Requester
	Credentials Credentials
	Mode        models.AccessMode
	Now         time.Time
}

// IsExpired reports whether the link is past its expiry. The expiry
// instant itself is still valid.
func IsExpired(link *models.Link, now time.Time) bool {
	if link.ExpiresAt == nil {
		return false
	}
	return now.After(*link.ExpiresAt)
}

func IsLimitReached(link *models.Link) bool {
	if link.AccessLimit == nil {
		return false
	}
	return link.CurrentAccessCount >= *link.AccessLimit
}

// IsAuthorized checks the audience. The requester's role is not consulted:
// owners and superusers get no bypass on the access path.
func IsAuthorized(link *models.Link, requester *models.Requester) bool {
	switch link.Audience.Scope {
	case models.AudiencePublic:
		return true
	case models.AudienceAuthenticated:
		return requester != nil
	case models.AudienceSelected:
		return requester != nil && link.Audience.Allows(requester.ID)
	default:
		return false
	}
}

func IsVerified(link *models.Link, c Credentials) bool {
	switch link.Verification.Kind {
	case models.VerificationNone, "":
		return true
	case models.VerificationPassword:
		return cryptox.CompareSecret(link.Verification.Value, []byte(c.Password))
	case models.VerificationUsername:
		return cryptox.EqualConstantTime(link.Verification.Value, c.Username)
	default:
		return false
	}
}

type check func(in Input) error

// pipeline is the evaluation order. Changing it changes which error wins
// when several checks would fail at once.
var pipeline = []check{
	checkExists,
	checkDownloadAllowed,
	checkExpiration,
	checkLimit,
	checkAudience,
	checkVerification,
}

// Evaluate runs the checks in order and returns the first failure, or nil
// when access is granted. It never mutates its input.
func Evaluate(in Input) error {
	for _, c := range pipeline {
		if err := c(in); err != nil {
			return err
		}
	}
	return nil
}

func checkExists(in Input) error {
	if in.Link == nil || !in.Link.IsActive {
		return ErrNotFound
	}
	if in.File == nil || !in.File.IsActive || in.File.ID != in.Link.FileID {
		return ErrNotFound
	}
	return nil
}

func checkDownloadAllowed(in Input) error {
	if in.Mode == models.AccessDownload && !in.Link.DownloadAllowed {
		return ErrDownloadNotAllowed
	}
	return nil
}

func checkExpiration(in Input) error {
	if IsExpired(in.Link, in.Now) {
		return ErrExpired
	}
	return nil
}

func checkLimit(in Input) error {
	if IsLimitReached(in.Link) {
		return ErrLimitReached
	}
	return nil
}

func checkAudience(in Input) error {
	if IsAuthorized(in.Link, in.Requester) {
		return nil
	}
	if in.Requester == nil {
		return ErrAuthRequired
	}
	return ErrNotPermitted
}

func checkVerification(in Input) error {
	if !IsVerified(in.Link, in.Credentials) {
		return ErrInvalidCredentials
	}
	return nil
}
