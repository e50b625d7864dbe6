package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guardshare/internal/server/storage"
)

const maxDisplayNameLen = 255

// CommitFileInput describes a blob the owner has finished uploading.
type CommitFileInput struct {
	StorageKey   string
	DisplayName  string
	OriginalName string
	SizeBytes    int64
	MediaType    string
	Description  string
}

// FileService registers uploaded blobs and manages their metadata.
type FileService struct {
	rm     repomanager.RepositoryManager
	blobs  storage.BlobStore
	logger logging.Logger
	now    func() time.Time
}

func NewFileService(rm repomanager.RepositoryManager, blobs storage.BlobStore, logger logging.Logger) *FileService {
	return &FileService{rm: rm, blobs: blobs, logger: logger.With("module", "files"), now: time.Now}
}

func ownerPrefix(ownerID string) string {
	return "users/" + ownerID + "/"
}

// PresignUpload reserves a storage key for the actor and signs a PUT for it.
func (s *FileService) PresignUpload(ctx context.Context, actor *models.Requester, mediaType string) (*models.FileUploadTask, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}

	key := storage.NewStorageKey(actor.ID, s.now().UTC())
	p, err := s.blobs.PresignPut(ctx, key, mediaType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &models.FileUploadTask{StorageKey: key, URL: p.URL, ExpiresAt: p.ExpiresAt}, nil
}

// Commit records an uploaded blob as an active file of the actor.
func (s *FileService) Commit(ctx context.Context, actor *models.Requester, in CommitFileInput) (*models.File, error) {
	if actor == nil {
		return nil, common.ErrorUnauthorized
	}

	in.DisplayName = strings.TrimSpace(in.DisplayName)
	switch {
	case in.DisplayName == "":
		return nil, invalid("display name is required")
	case utf8.RuneCountInString(in.DisplayName) > maxDisplayNameLen:
		return nil, invalid("display name must be at most %d characters", maxDisplayNameLen)
	case utf8.RuneCountInString(in.Description) > maxDescriptionLen:
		return nil, invalid("description must be at most %d characters", maxDescriptionLen)
	case !strings.HasPrefix(in.StorageKey, ownerPrefix(actor.ID)):
		return nil, invalid("storage key was not issued to this user")
	case in.SizeBytes < 0:
		return nil, invalid("size must not be negative")
	}

	if in.OriginalName == "" {
		in.OriginalName = in.DisplayName
	}
	if in.MediaType == "" {
		in.MediaType = "application/octet-stream"
	}

	var created *models.File
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.rm.Files(tx).Create(ctx, &models.File{
			OwnerID:      actor.ID,
			StorageKey:   in.StorageKey,
			DisplayName:  in.DisplayName,
			OriginalName: in.OriginalName,
			SizeBytes:    in.SizeBytes,
			MediaType:    in.MediaType,
			Description:  in.Description,
		})
		created = f
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, fmt.Errorf("file name %q: %w", in.DisplayName, common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create file: %w", err)
	}

	s.logger.Info(ctx, "file committed", "file_id", created.ID, "owner_id", actor.ID, "size", created.SizeBytes)
	return created, nil
}

// Get returns an active file the actor may manage.
func (s *FileService) Get(ctx context.Context, actor *models.Requester, fileID string) (*models.File, error) {
	f, err := s.rm.Files(s.rm.Conn()).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive || !actor.CanManage(f.OwnerID) {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (s *FileService) List(ctx context.Context, actor *models.Requester, params models.ListParams) ([]*models.File, int, error) {
	if actor == nil {
		return nil, 0, common.ErrorUnauthorized
	}
	return s.rm.Files(s.rm.Conn()).List(ctx, actor.ID, params.Normalize())
}

// ListAll lists active files of every owner. Superusers only.
func (s *FileService) ListAll(ctx context.Context, actor *models.Requester, params models.ListParams) ([]*models.File, int, error) {
	if !actor.IsSuperuser() {
		return nil, 0, common.ErrorForbidden
	}
	return s.rm.Files(s.rm.Conn()).List(ctx, "", params.Normalize())
}

// Delete soft-deletes the file and deactivates every link pointing at it.
// Links and their access logs are kept. Removing the blob is best effort.
func (s *FileService) Delete(ctx context.Context, actor *models.Requester, fileID string) error {
	var (
		file        *models.File
		deactivated int64
	)
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.rm.Files(tx).GetByID(ctx, fileID)
		if err != nil {
			return err
		}
		if !f.IsActive || !actor.CanManage(f.OwnerID) {
			return common.ErrorNotFound
		}

		now := s.now().UTC()
		if err := s.rm.Files(tx).SoftDelete(ctx, f.ID, now); err != nil {
			return err
		}
		n, err := s.rm.Links(tx).DeactivateByFile(ctx, f.ID, now)
		if err != nil {
			return err
		}
		file, deactivated = f, n
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		s.logger.Warn(ctx, "blob delete failed", "file_id", file.ID, "storage_key", file.StorageKey, "error", err)
	}

	s.logger.Info(ctx, "file deleted", "file_id", file.ID, "links_deactivated", deactivated)
	return nil
}
