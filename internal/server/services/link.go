package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/cryptox"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
)

const (
	linkIDBytes          = 16
	maxLinkNameLen       = 100
	maxDescriptionLen    = 500
	recentLinksCount     = 10
	defaultAccessLogPage = 100
)

// CreateLinkInput is what an owner submits to share a file.
type CreateLinkInput struct {
	Name        string
	Description string
	FileID      string
	Expiration  models.ExpirationPolicy
	// AccessLimit is nil for unlimited links.
	AccessLimit *int64

	VerificationKind models.VerificationKind
	// VerificationValue is the plain password or the expected username.
	VerificationValue string

	AudienceScope models.AudienceScope
	AllowedUsers  []string

	DownloadAllowed bool
}

// LinkService manages link lifecycles on behalf of owners and superusers.
type LinkService struct {
	rm     repomanager.RepositoryManager
	logger logging.Logger
	now    func() time.Time
}

func NewLinkService(rm repomanager.RepositoryManager, logger logging.Logger) *LinkService {
	return &LinkService{rm: rm, logger: logger.With("module", "links"), now: time.Now}
}

// Create validates in and stores a new active link. The expiry is resolved
// here, once, relative to the creation time.
func (s *LinkService) Create(ctx context.Context, actor *models.Requester, in CreateLinkInput) (*models.Link, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxLinkNameLen {
		return nil, invalid("name must be at most %d characters", maxLinkNameLen)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, invalid("description must be at most %d characters", maxDescriptionLen)
	}
	if in.FileID == "" {
		return nil, invalid("file is required")
	}

	now := s.now().UTC()

	switch in.Expiration.Kind() {
	case models.ExpirationDuration:
		if in.Expiration.After() <= 0 {
			return nil, invalid("expiration duration must be positive")
		}
	case models.ExpirationFixedDate:
		if !in.Expiration.At().After(now) {
			return nil, invalid("expiration date must be in the future")
		}
	}

	if in.AccessLimit != nil && *in.AccessLimit <= 0 {
		return nil, invalid("access limit must be positive")
	}

	verification, err := s.buildVerification(in.VerificationKind, in.VerificationValue)
	if err != nil {
		return nil, err
	}

	audience, err := buildAudience(in.AudienceScope, in.AllowedUsers)
	if err != nil {
		return nil, err
	}

	if err := s.checkAudienceUsers(ctx, audience.AllowedUsers); err != nil {
		return nil, err
	}

	file, err := s.rm.Files(s.rm.Conn()).GetByID(ctx, in.FileID)
	if errors.Is(err, common.ErrorNotFound) || (err == nil && !file.IsActive) {
		return nil, invalid("file not found or inactive")
	}
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	if !actor.CanManage(file.OwnerID) {
		return nil, common.ErrorForbidden
	}

	id, err := common.MakeRandHexString(linkIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generate link id: %w", err)
	}

	link := &models.Link{
		ID:              id,
		Name:            in.Name,
		Description:     in.Description,
		FileID:          file.ID,
		OwnerID:         file.OwnerID,
		ExpirationKind:  in.Expiration.Kind(),
		ExpiresAt:       in.Expiration.Resolve(now),
		AccessLimit:     in.AccessLimit,
		Verification:    verification,
		Audience:        audience,
		DownloadAllowed: in.DownloadAllowed,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.rm.Links(tx).Create(ctx, link)
	}); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("link name %q: %w", link.Name, common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.logger.Info(ctx, "link created", "link_id", link.ID, "file_id", link.FileID, "owner_id", link.OwnerID)
	return link, nil
}

func (s *LinkService) buildVerification(kind models.VerificationKind, value string) (models.Verification, error) {
	switch kind {
	case models.VerificationNone, "":
		return models.NoVerification(), nil
	case models.VerificationPassword:
		if value == "" {
			return models.Verification{}, invalid("password is required for password verification")
		}
		hash, err := cryptox.HashSecret([]byte(value))
		if err != nil {
			return models.Verification{}, fmt.Errorf("hash link password: %w", err)
		}
		return models.PasswordVerification(hash), nil
	case models.VerificationUsername:
		if value == "" {
			return models.Verification{}, invalid("username is required for username verification")
		}
		return models.UsernameVerification(value), nil
	default:
		return models.Verification{}, invalid("unknown verification type %q", kind)
	}
}

func buildAudience(scope models.AudienceScope, allowed []string) (models.Audience, error) {
	switch scope {
	case models.AudiencePublic, "":
		return models.PublicAudience(), nil
	case models.AudienceAuthenticated:
		return models.AuthenticatedAudience(), nil
	case models.AudienceSelected:
		var ids []string
		seen := make(map[string]struct{}, len(allowed))
		for _, id := range allowed {
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return models.Audience{}, invalid("selected audience needs at least one user")
		}
		return models.SelectedUsersAudience(ids...), nil
	default:
		return models.Audience{}, invalid("unknown audience %q", scope)
	}
}

// checkAudienceUsers rejects selections naming users that do not exist or
// are deactivated.
func (s *LinkService) checkAudienceUsers(ctx context.Context, ids []string) error {
	repo := s.rm.Users(s.rm.Conn())
	for _, id := range ids {
		u, err := repo.GetByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) || (err == nil && !u.IsActive) {
			return invalid("unknown user %q", id)
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
	}
	return nil
}

// Get returns a link the actor may manage.
func (s *LinkService) Get(ctx context.Context, actor *models.Requester, linkID string) (*models.Link, error) {
	link, err := s.rm.Links(s.rm.Conn()).GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(link.OwnerID) {
		// Hide links of other owners.
		return nil, common.ErrorNotFound
	}
	return link, nil
}

// Toggle flips the active flag and returns the updated link.
func (s *LinkService) Toggle(ctx context.Context, actor *models.Requester, linkID string) (*models.Link, error) {
	var updated *models.Link
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Links(tx)
		link, err := repo.GetByID(ctx, linkID)
		if err != nil {
			return err
		}
		if !actor.CanManage(link.OwnerID) {
			return common.ErrorNotFound
		}
		now := s.now().UTC()
		if err := repo.SetActive(ctx, link.ID, !link.IsActive, now); err != nil {
			return err
		}
		link.IsActive = !link.IsActive
		link.UpdatedAt = now
		updated = link
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "link toggled", "link_id", linkID, "active", updated.IsActive)
	return updated, nil
}

// Delete removes the link together with its access log.
func (s *LinkService) Delete(ctx context.Context, actor *models.Requester, linkID string) error {
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Links(tx)
		link, err := repo.GetByID(ctx, linkID)
		if err != nil {
			return err
		}
		if !actor.CanManage(link.OwnerID) {
			return common.ErrorNotFound
		}
		return repo.Delete(ctx, link.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "link deleted", "link_id", linkID)
	return nil
}

// List returns the actor's own links.
func (s *LinkService) List(ctx context.Context, actor *models.Requester, params models.ListParams) ([]*models.Link, int, error) {
	if actor == nil {
		return nil, 0, common.ErrorUnauthorized
	}
	return s.rm.Links(s.rm.Conn()).List(ctx, actor.ID, params.Normalize())
}

// Recent returns the actor's most recently created links.
func (s *LinkService) Recent(ctx context.Context, actor *models.Requester) ([]*models.Link, error) {
	links, _, err := s.List(ctx, actor, models.ListParams{SortBy: "created_at", Desc: true, Limit: recentLinksCount})
	return links, err
}

// ListAll returns links of every owner. Superusers only.
func (s *LinkService) ListAll(ctx context.Context, actor *models.Requester, params models.ListParams) ([]*models.Link, int, error) {
	if !actor.IsSuperuser() {
		return nil, 0, common.ErrorForbidden
	}
	return s.rm.Links(s.rm.Conn()).List(ctx, "", params.Normalize())
}

// AccessLog returns up to limit entries of the link's log, newest first.
func (s *LinkService) AccessLog(ctx context.Context, actor *models.Requester, linkID string, limit int) ([]*models.AccessLogEntry, error) {
	if _, err := s.Get(ctx, actor, linkID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultAccessLogPage
	case limit > models.MaxAccessLogEntries:
		limit = models.MaxAccessLogEntries
	}
	return s.rm.Links(s.rm.Conn()).AccessLog(ctx, linkID, limit)
}
