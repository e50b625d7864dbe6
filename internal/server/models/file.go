// Package models defines server-side data models persisted in the database.
package models

import "time"

// File describes an uploaded blob. The content itself lives in object
// storage under StorageKey; deleting a file only clears IsActive.
type File struct {
	ID           string
	OwnerID      string
	StorageKey   string
	DisplayName  string
	OriginalName string
	SizeBytes    int64
	MediaType    string
	Description  string

	IsActive bool
	// DownloadCount grows by one for every download granted through a link.
	DownloadCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileUploadTask instructs the client to upload a file using a presigned URL.
type FileUploadTask struct {
	StorageKey string
	URL        string
	ExpiresAt  time.Time
}

// ListParams carries search, filtering and paging options for list queries.
type ListParams struct {
	Search string
	// Active filters by IsActive when set.
	Active *bool
	// SortBy is one of the column names accepted by the repository;
	// anything else falls back to created_at.
	SortBy string
	Desc   bool
	Page   int
	Limit  int
}

// Normalize clamps paging values: page starts at 1, limit defaults to 20
// and never exceeds 100.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
