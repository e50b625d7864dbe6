package linkaccess

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Request asks for one link access. Password and Username are the
// verification values, left empty when the link needs none.
type Request struct {
	LinkID   string
	Password string
	Username string
}

func (r Request) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"link_id":  r.LinkID,
		"password": r.Password,
		"username": r.Username,
	})
}

func RequestFromStruct(s *structpb.Struct) Request {
	f := s.GetFields()
	return Request{
		LinkID:   f["link_id"].GetStringValue(),
		Password: f["password"].GetStringValue(),
		Username: f["username"].GetStringValue(),
	}
}

// Outcome is the reply for a granted access. DownloadURL is set for
// downloads only.
type Outcome struct {
	LinkID           string
	LinkName         string
	LinkDescription  string
	DownloadAllowed  bool
	FileID           string
	FileDisplayName  string
	FileOriginalName string
	FileMediaType    string
	FileSizeBytes    int64
	AccessCount      int64
	DownloadURL      string
	DownloadExpires  time.Time
}

func (o Outcome) Struct() (*structpb.Struct, error) {
	m := map[string]any{
		"link": map[string]any{
			"id":               o.LinkID,
			"name":             o.LinkName,
			"description":      o.LinkDescription,
			"download_allowed": o.DownloadAllowed,
		},
		"file": map[string]any{
			"id":            o.FileID,
			"display_name":  o.FileDisplayName,
			"original_name": o.FileOriginalName,
			"media_type":    o.FileMediaType,
			"size_bytes":    float64(o.FileSizeBytes),
		},
		"access_count": float64(o.AccessCount),
	}
	if o.DownloadURL != "" {
		m["download_url"] = o.DownloadURL
		m["download_url_expires_at"] = o.DownloadExpires.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(m)
}

func OutcomeFromStruct(s *structpb.Struct) (*Outcome, error) {
	f := s.GetFields()
	link := f["link"].GetStructValue().GetFields()
	file := f["file"].GetStructValue().GetFields()
	if link == nil || file == nil {
		return nil, fmt.Errorf("malformed outcome: missing link or file")
	}

	o := &Outcome{
		LinkID:           link["id"].GetStringValue(),
		LinkName:         link["name"].GetStringValue(),
		LinkDescription:  link["description"].GetStringValue(),
		DownloadAllowed:  link["download_allowed"].GetBoolValue(),
		FileID:           file["id"].GetStringValue(),
		FileDisplayName:  file["display_name"].GetStringValue(),
		FileOriginalName: file["original_name"].GetStringValue(),
		FileMediaType:    file["media_type"].GetStringValue(),
		FileSizeBytes:    int64(file["size_bytes"].GetNumberValue()),
		AccessCount:      int64(f["access_count"].GetNumberValue()),
		DownloadURL:      f["download_url"].GetStringValue(),
	}
	if v := f["download_url_expires_at"].GetStringValue(); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("malformed outcome: %w", err)
		}
		o.DownloadExpires = t
	}
	return o, nil
}
