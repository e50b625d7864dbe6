package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/cryptox"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/auth"
	"github.com/dmitrijs2005/guardshare/internal/server/config"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
)

const (
	minUserNameLen = 3
	maxUserNameLen = 30
	minPasswordLen = 6

	minUserSearchLen = 2
	userSearchLimit  = 10
)

// UserService handles registration, login and token resolution.
//
// Resolved identities are cached by user id for a short time so that the
// access path does not hit the users table on every request. Deactivation
// evicts the entry immediately on this instance.
type UserService struct {
	rm            repomanager.RepositoryManager
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
	identities    *expirable.LRU[string, models.Requester]
	now           func() time.Time
}

func NewUserService(rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	size := cfg.IdentityCacheSize
	if size <= 0 {
		size = 1
	}
	return &UserService{
		rm:            rm,
		logger:        logger.With("module", "users"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.AccessTokenValidityDuration,
		identities:    expirable.NewLRU[string, models.Requester](size, nil, cfg.IdentityCacheTTL),
		now:           time.Now,
	}
}

func validateCredentials(userName, password string) error {
	n := utf8.RuneCountInString(userName)
	if n < minUserNameLen || n > maxUserNameLen {
		return invalid("username must be %d to %d characters", minUserNameLen, maxUserNameLen)
	}
	if strings.TrimSpace(userName) != userName {
		return invalid("username must not start or end with spaces")
	}
	if len(password) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// Register creates an active user with the regular role.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	return s.create(ctx, userName, password, common.RoleUser)
}

// EnsureSuperuser creates a superuser named userName unless an account with
// that name already exists. Existing accounts are left as they are.
func (s *UserService) EnsureSuperuser(ctx context.Context, userName, password string) error {
	_, err := s.rm.Users(s.rm.Conn()).GetByUserName(ctx, userName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("lookup superuser: %w", err)
	}

	_, err = s.create(ctx, userName, password, common.RoleSuperuser)
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (s *UserService) create(ctx context.Context, userName, password, role string) (*models.User, error) {
	if err := validateCredentials(userName, password); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashSecret([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.rm.Users(tx).Create(ctx, &models.User{
			UserName:     userName,
			PasswordHash: []byte(hash),
			Role:         role,
			IsActive:     true,
		})
		user = u
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("username %q: %w", userName, common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Login checks the password and returns a signed access token. Unknown
// users, wrong passwords and inactive accounts all yield
// common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	user, err := s.rm.Users(s.rm.Conn()).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.BurnCompare([]byte(password))
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if !cryptox.CompareSecret(string(user.PasswordHash), []byte(password)) || !user.IsActive {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Resolve turns an access token into a Requester. An empty token is an
// anonymous caller and yields (nil, nil). Broken or expired tokens return
// the auth errors from the auth package; unknown or inactive users return
// common.ErrorUnauthorized and common.ErrorInactiveUser.
func (s *UserService) Resolve(ctx context.Context, token string) (*models.Requester, error) {
	if token == "" {
		return nil, nil
	}

	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	if r, ok := s.identities.Get(userID); ok {
		identityCacheHitsTotal.Inc()
		return &r, nil
	}
	identityCacheMissesTotal.Inc()

	user, err := s.rm.Users(s.rm.Conn()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrorInactiveUser
	}

	r := models.Requester{ID: user.ID, Role: user.Role}
	s.identities.Add(user.ID, r)
	return &r, nil
}

// Deactivate disables userID and deactivates all of the user's files and
// links. Only superusers may call it, and not on themselves.
func (s *UserService) Deactivate(ctx context.Context, actor *models.Requester, userID string) error {
	if !actor.IsSuperuser() {
		return common.ErrorForbidden
	}
	if actor.ID == userID {
		return invalid("superusers cannot deactivate themselves")
	}

	var files, links int64
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now().UTC()
		if err := s.rm.Users(tx).SetActive(ctx, userID, false, now); err != nil {
			return err
		}
		var err error
		if files, err = s.rm.Files(tx).DeactivateByOwner(ctx, userID, now); err != nil {
			return err
		}
		links, err = s.rm.Links(tx).DeactivateByOwner(ctx, userID, now)
		return err
	})
	if err != nil {
		return err
	}

	s.identities.Remove(userID)
	s.logger.Info(ctx, "user deactivated", "user_id", userID, "by", actor.ID,
		"files_deactivated", files, "links_deactivated", links)
	return nil
}

// Search finds active users by name so a link owner can pick a selected
// audience. The actor is never part of the result and queries shorter than
// two characters match nothing.
func (s *UserService) Search(ctx context.Context, actor *models.Requester, query string) ([]*models.User, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minUserSearchLen {
		return nil, nil
	}

	found, err := s.rm.Users(s.rm.Conn()).Search(ctx, query, actor.ID, userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return found, nil
}
