// Package services contains the server-side business logic shared by the
// HTTP and gRPC transports.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/access"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/guardshare/internal/server/storage"
)

// maxRecordAttempts bounds how often a grant is retried when the
// conditional counter update loses a race but the reloaded link still
// passes every check.
const maxRecordAttempts = 3

// AccessRequest is one attempt to use a link.
type AccessRequest struct {
	LinkID string
	// Requester is nil for anonymous callers.
	Requester     *models.Requester
	Credentials   access.Credentials
	SourceAddress string
	UserAgent     string
}

type LinkSummary struct {
	ID              string
	Name            string
	Description     string
	DownloadAllowed bool
}

type FileSummary struct {
	ID           string
	DisplayName  string
	OriginalName string
	MediaType    string
	SizeBytes    int64
}

// AccessOutcome describes a granted access.
type AccessOutcome struct {
	Link        LinkSummary
	File        FileSummary
	AccessCount int64
	// Retrieval is set for downloads only.
	Retrieval *storage.Presigned
}

// AccessService decides link accesses and records the granted ones.
type AccessService struct {
	rm     repomanager.RepositoryManager
	blobs  storage.BlobStore
	logger logging.Logger
	now    func() time.Time
}

func NewAccessService(rm repomanager.RepositoryManager, blobs storage.BlobStore, logger logging.Logger) *AccessService {
	return &AccessService{
		rm:     rm,
		blobs:  blobs,
		logger: logger.With("module", "access"),
		now:    time.Now,
	}
}

// View grants read access to the link's metadata.
func (s *AccessService) View(ctx context.Context, req AccessRequest) (*AccessOutcome, error) {
	return s.use(ctx, req, models.AccessView)
}

// Download grants access and returns a presigned URL for the file content.
// The access stays counted even when signing the URL fails afterwards.
func (s *AccessService) Download(ctx context.Context, req AccessRequest) (*AccessOutcome, error) {
	return s.use(ctx, req, models.AccessDownload)
}

func (s *AccessService) use(ctx context.Context, req AccessRequest, mode models.AccessMode) (out *AccessOutcome, err error) {
	defer func() {
		linkAccessTotal.WithLabelValues(string(mode), access.Kind(err)).Inc()
	}()

	for attempt := 1; attempt <= maxRecordAttempts; attempt++ {
		now := s.now()

		link, file, err := s.load(ctx, req.LinkID)
		if err != nil {
			return nil, err
		}

		if err := access.Evaluate(access.Input{
			Link:        link,
			File:        file,
			Requester:   req.Requester,
			Credentials: req.Credentials,
			Mode:        mode,
			Now:         now,
		}); err != nil {
			s.logger.Debug(ctx, "access denied", "link_id", req.LinkID, "mode", mode, "reason", access.Kind(err))
			return nil, err
		}

		count, err := s.record(ctx, link, file, req, mode, now)
		if errors.Is(err, common.ErrConditionFailed) {
			s.logger.Debug(ctx, "link changed while recording access, re-evaluating", "link_id", req.LinkID, "attempt", attempt)
			continue
		}
		if err != nil {
			s.logger.Error(ctx, "record access failed", "link_id", req.LinkID, "error", err)
			return nil, fmt.Errorf("record access: %w", err)
		}

		out = &AccessOutcome{
			Link: LinkSummary{
				ID:              link.ID,
				Name:            link.Name,
				Description:     link.Description,
				DownloadAllowed: link.DownloadAllowed,
			},
			File: FileSummary{
				ID:           file.ID,
				DisplayName:  file.DisplayName,
				OriginalName: file.OriginalName,
				MediaType:    file.MediaType,
				SizeBytes:    file.SizeBytes,
			},
			AccessCount: count,
		}

		if mode == models.AccessDownload {
			name := file.OriginalName
			if name == "" {
				name = file.DisplayName
			}
			handle, err := s.blobs.PresignGet(ctx, file.StorageKey, name, true)
			if err != nil {
				s.logger.Error(ctx, "presign download failed", "link_id", link.ID, "file_id", file.ID, "error", err)
				return nil, fmt.Errorf("presign download: %w", err)
			}
			out.Retrieval = handle
		}

		return out, nil
	}

	return nil, fmt.Errorf("record access: %w: %w", common.ErrorInternal, common.ErrConditionFailed)
}

// load fetches the link and its file. Missing rows are returned as nil so
// that the pipeline reports them.
func (s *AccessService) load(ctx context.Context, linkID string) (*models.Link, *models.File, error) {
	db := s.rm.Conn()

	link, err := s.rm.Links(db).GetByID(ctx, linkID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load link: %w", err)
	}

	file, err := s.rm.Files(db).GetByID(ctx, link.FileID)
	if errors.Is(err, common.ErrorNotFound) {
		return link, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load file: %w", err)
	}

	return link, file, nil
}

// record counts the access, appends the log entry and, for downloads, bumps
// the file's download counter, all in one transaction.
func (s *AccessService) record(ctx context.Context, link *models.Link, file *models.File, req AccessRequest,
	mode models.AccessMode, now time.Time) (int64, error) {

	var count int64
	err := s.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		links := s.rm.Links(tx)

		n, err := links.IncrementAccessCount(ctx, link.ID, now)
		if err != nil {
			return err
		}
		count = n

		entry := &models.AccessLogEntry{
			LinkID:        link.ID,
			SourceAddress: req.SourceAddress,
			UserAgent:     req.UserAgent,
			Mode:          mode,
			AccessedAt:    now,
		}
		if req.Requester != nil {
			id := req.Requester.ID
			entry.RequesterID = &id
		}
		if err := links.AppendAccessLog(ctx, entry); err != nil {
			return err
		}

		if mode == models.AccessDownload {
			return s.rm.Files(tx).IncrementDownloadCount(ctx, file.ID, now)
		}
		return nil
	})

	return count, err
}
