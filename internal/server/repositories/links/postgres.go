package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

// PostgresRepository implements link storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const linkColumns = `id, name, description, file_id, owner_id, expiration_kind, expires_at, access_limit,
	current_access_count, verification_kind, verification_value, audience_scope,
	COALESCE((SELECT string_agg(user_id::text, ',') FROM link_allowed_users u WHERE u.link_id = links.id), ''),
	download_allowed, is_active, created_at, updated_at`

var sortColumns = map[string]string{
	"created_at":           "created_at",
	"name":                 "name",
	"expires_at":           "expires_at",
	"current_access_count": "current_access_count",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*models.Link, error) {
	var (
		l         models.Link
		expiresAt sql.NullTime
		limit     sql.NullInt64
		allowed   string
	)
	err := s.Scan(&l.ID, &l.Name, &l.Description, &l.FileID, &l.OwnerID, &l.ExpirationKind, &expiresAt, &limit,
		&l.CurrentAccessCount, &l.Verification.Kind, &l.Verification.Value, &l.Audience.Scope, &allowed,
		&l.DownloadAllowed, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	if limit.Valid {
		v := limit.Int64
		l.AccessLimit = &v
	}
	if allowed != "" {
		l.Audience.AllowedUsers = strings.Split(allowed, ",")
	}
	return &l, nil
}

// Create inserts the link and its allowed users. Callers run it inside a
// transaction so a failed allowed-user insert leaves nothing behind.
func (r *PostgresRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (id, name, description, file_id, owner_id, expiration_kind, expires_at, access_limit,
			current_access_count, verification_kind, verification_value, audience_scope, download_allowed,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	var expiresAt sql.NullTime
	if link.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *link.ExpiresAt, Valid: true}
	}
	var limit sql.NullInt64
	if link.AccessLimit != nil {
		limit = sql.NullInt64{Int64: *link.AccessLimit, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.Name, link.Description, link.FileID, link.OwnerID, string(link.ExpirationKind), expiresAt, limit,
		link.CurrentAccessCount, string(link.Verification.Kind), link.Verification.Value, string(link.Audience.Scope),
		link.DownloadAllowed, link.IsActive, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	for _, userID := range link.Audience.AllowedUsers {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO link_allowed_users (link_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			link.ID, userID); err != nil {
			if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidText(err) {
				return fmt.Errorf("%w: unknown user %q", common.ErrorValidation, userID)
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, params models.ListParams) ([]*models.Link, int, error) {
	params = params.Normalize()

	where := []string{"TRUE"}
	var args []any
	if ownerID != "" {
		args = append(args, ownerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if params.Active != nil {
		args = append(args, *params.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM links WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	order, ok := sortColumns[params.SortBy]
	if !ok {
		order = "created_at"
	}
	dir := "ASC"
	if params.Desc {
		dir = "DESC"
	}

	args = append(args, params.Limit, params.Offset())
	query := fmt.Sprintf(`SELECT %s FROM links WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		linkColumns, cond, order, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []*models.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE links SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) IncrementAccessCount(ctx context.Context, id string, now time.Time) (int64, error) {
	query := `
		UPDATE links SET current_access_count = current_access_count + 1, updated_at = $2
		WHERE id = $1
			AND is_active
			AND (access_limit IS NULL OR current_access_count < access_limit)
			AND (expires_at IS NULL OR expires_at >= $2)
			AND EXISTS (SELECT 1 FROM files f WHERE f.id = links.file_id AND f.is_active)
		RETURNING current_access_count`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, id, now).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrConditionFailed
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) AppendAccessLog(ctx context.Context, e *models.AccessLogEntry) error {
	var requester sql.NullString
	if e.RequesterID != nil {
		requester = sql.NullString{String: *e.RequesterID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO link_access_logs (link_id, requester_id, source_address, user_agent, mode, accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.LinkID, requester, e.SourceAddress, e.UserAgent, string(e.Mode), e.AccessedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	// Keep the newest MaxAccessLogEntries rows. The link row is locked by the
	// counter update in the same transaction, so trims for one link never race.
	_, err = r.db.ExecContext(ctx, `
		DELETE FROM link_access_logs
		WHERE link_id = $1 AND id <= (
			SELECT id FROM link_access_logs WHERE link_id = $1 ORDER BY id DESC OFFSET $2 LIMIT 1
		)`, e.LinkID, models.MaxAccessLogEntries)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AccessLog(ctx context.Context, linkID string, limit int) ([]*models.AccessLogEntry, error) {
	if limit <= 0 || limit > models.MaxAccessLogEntries {
		limit = models.MaxAccessLogEntries
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, link_id, requester_id, source_address, user_agent, mode, accessed_at
		FROM link_access_logs WHERE link_id = $1 ORDER BY id DESC LIMIT $2`, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select access log: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessLogEntry
	for rows.Next() {
		var (
			e         models.AccessLogEntry
			requester sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.LinkID, &requester, &e.SourceAddress, &e.UserAgent, &e.Mode, &e.AccessedAt); err != nil {
			return nil, err
		}
		if requester.Valid {
			id := requester.String
			e.RequesterID = &id
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeactivateByFile(ctx context.Context, fileID string, now time.Time) (int64, error) {
	return r.execCount(ctx, `UPDATE links SET is_active = FALSE, updated_at = $2 WHERE file_id = $1 AND is_active`, fileID, now)
}

func (r *PostgresRepository) DeactivateByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	return r.execCount(ctx, `UPDATE links SET is_active = FALSE, updated_at = $2 WHERE owner_id = $1 AND is_active`, ownerID, now)
}

func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.execCount(ctx, `
		UPDATE links SET is_active = FALSE, updated_at = $1
		WHERE is_active AND expires_at IS NOT NULL AND expires_at < $1`, now)
}

func (r *PostgresRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.execCount(ctx, `DELETE FROM links WHERE NOT is_active AND updated_at < $1`, cutoff)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
