package httpapi

import (
	"time"

	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

type fileResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	DisplayName   string    `json:"display_name"`
	OriginalName  string    `json:"original_name"`
	SizeBytes     int64     `json:"size_bytes"`
	MediaType     string    `json:"media_type"`
	Description   string    `json:"description"`
	IsActive      bool      `json:"is_active"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:            f.ID,
		OwnerID:       f.OwnerID,
		DisplayName:   f.DisplayName,
		OriginalName:  f.OriginalName,
		SizeBytes:     f.SizeBytes,
		MediaType:     f.MediaType,
		Description:   f.Description,
		IsActive:      f.IsActive,
		DownloadCount: f.DownloadCount,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// linkResponse never carries the verification value.
type linkResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	FileID             string     `json:"file_id"`
	OwnerID            string     `json:"owner_id"`
	ExpirationType     string     `json:"expiration_type"`
	ExpiresAt          *time.Time `json:"expires_at"`
	AccessLimit        *int64     `json:"access_limit"`
	CurrentAccessCount int64      `json:"current_access_count"`
	VerificationType   string     `json:"verification_type"`
	AudienceScope      string     `json:"audience_scope"`
	AllowedUsers       []string   `json:"allowed_users,omitempty"`
	DownloadAllowed    bool       `json:"download_allowed"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toLinkResponse(l *models.Link) linkResponse {
	return linkResponse{
		ID:                 l.ID,
		Name:               l.Name,
		Description:        l.Description,
		FileID:             l.FileID,
		OwnerID:            l.OwnerID,
		ExpirationType:     string(l.ExpirationKind),
		ExpiresAt:          l.ExpiresAt,
		AccessLimit:        l.AccessLimit,
		CurrentAccessCount: l.CurrentAccessCount,
		VerificationType:   string(l.Verification.Kind),
		AudienceScope:      string(l.Audience.Scope),
		AllowedUsers:       l.Audience.AllowedUsers,
		DownloadAllowed:    l.DownloadAllowed,
		IsActive:           l.IsActive,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

type accessLogResponse struct {
	ID            int64     `json:"id"`
	RequesterID   *string   `json:"requester_id"`
	SourceAddress string    `json:"source_address"`
	UserAgent     string    `json:"user_agent"`
	Mode          string    `json:"mode"`
	AccessedAt    time.Time `json:"accessed_at"`
}

func toAccessLogResponse(e *models.AccessLogEntry) accessLogResponse {
	return accessLogResponse{
		ID:            e.ID,
		RequesterID:   e.RequesterID,
		SourceAddress: e.SourceAddress,
		UserAgent:     e.UserAgent,
		Mode:          string(e.Mode),
		AccessedAt:    e.AccessedAt,
	}
}

type accessOutcomeResponse struct {
	Link struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Description     string `json:"description"`
		DownloadAllowed bool   `json:"download_allowed"`
	} `json:"link"`
	File struct {
		ID           string `json:"id"`
		DisplayName  string `json:"display_name"`
		OriginalName string `json:"original_name"`
		MediaType    string `json:"media_type"`
		SizeBytes    int64  `json:"size_bytes"`
	} `json:"file"`
	AccessCount int64      `json:"access_count"`
	DownloadURL string     `json:"download_url,omitempty"`
	URLExpires  *time.Time `json:"download_url_expires_at,omitempty"`
}

func toAccessOutcomeResponse(o *services.AccessOutcome) accessOutcomeResponse {
	var out accessOutcomeResponse
	out.Link.ID = o.Link.ID
	out.Link.Name = o.Link.Name
	out.Link.Description = o.Link.Description
	out.Link.DownloadAllowed = o.Link.DownloadAllowed
	out.File.ID = o.File.ID
	out.File.DisplayName = o.File.DisplayName
	out.File.OriginalName = o.File.OriginalName
	out.File.MediaType = o.File.MediaType
	out.File.SizeBytes = o.File.SizeBytes
	out.AccessCount = o.AccessCount
	if o.Retrieval != nil {
		out.DownloadURL = o.Retrieval.URL
		exp := o.Retrieval.ExpiresAt
		out.URLExpires = &exp
	}
	return out
}
