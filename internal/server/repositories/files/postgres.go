package files

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

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, owner_id, storage_key, display_name, original_name, size_bytes, media_type,
	description, is_active, download_count, created_at, updated_at`

var sortColumns = map[string]string{
	"created_at":     "created_at",
	"display_name":   "display_name",
	"size_bytes":     "size_bytes",
	"download_count": "download_count",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	f := &models.File{}
	err := s.Scan(&f.ID, &f.OwnerID, &f.StorageKey, &f.DisplayName, &f.OriginalName, &f.SizeBytes, &f.MediaType,
		&f.Description, &f.IsActive, &f.DownloadCount, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create inserts an active file. A second active file with the same display
// name for the same owner yields common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (owner_id, storage_key, display_name, original_name, size_bytes, media_type, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, download_count, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		file.OwnerID, file.StorageKey, file.DisplayName, file.OriginalName, file.SizeBytes, file.MediaType, file.Description).
		Scan(&file.ID, &file.IsActive, &file.DownloadCount, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the file regardless of its active flag.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, params models.ListParams) ([]*models.File, int, error) {
	params = params.Normalize()

	where := []string{"is_active"}
	var args []any
	if ownerID != "" {
		args = append(args, ownerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		where = append(where, fmt.Sprintf("(display_name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM files WHERE `+cond, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		fileColumns, cond, order, dir, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// SoftDelete clears is_active. Deleting an already inactive file reports
// common.ErrorNotFound.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) DeactivateByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET is_active = FALSE, updated_at = $2 WHERE owner_id = $1 AND is_active`, ownerID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) IncrementDownloadCount(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET download_count = download_count + 1, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
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
