package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
	"github.com/dmitrijs2005/guardshare/internal/server/access"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

func (s *GRPCServer) View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := s.access.View(ctx, s.accessRequest(ctx, in))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return toOutcome(out).Struct()
}

func (s *GRPCServer) Download(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := s.access.Download(ctx, s.accessRequest(ctx, in))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return toOutcome(out).Struct()
}

func (s *GRPCServer) fail(ctx context.Context, err error) error {
	if !access.IsDecision(err) {
		s.logger.Error(ctx, "link access failed", "error", err)
	}
	return toStatus(err)
}

func (s *GRPCServer) accessRequest(ctx context.Context, in *structpb.Struct) services.AccessRequest {
	req := linkaccess.RequestFromStruct(in)

	out := services.AccessRequest{
		LinkID:      req.LinkID,
		Requester:   requesterFrom(ctx),
		Credentials: access.Credentials{Password: req.Password, Username: req.Username},
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		out.SourceAddress = p.Addr.String()
		if host, _, err := net.SplitHostPort(out.SourceAddress); err == nil {
			out.SourceAddress = host
		}
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			out.UserAgent = ua[0]
		}
	}
	return out
}

func toOutcome(o *services.AccessOutcome) linkaccess.Outcome {
	out := linkaccess.Outcome{
		LinkID:           o.Link.ID,
		LinkName:         o.Link.Name,
		LinkDescription:  o.Link.Description,
		DownloadAllowed:  o.Link.DownloadAllowed,
		FileID:           o.File.ID,
		FileDisplayName:  o.File.DisplayName,
		FileOriginalName: o.File.OriginalName,
		FileMediaType:    o.File.MediaType,
		FileSizeBytes:    o.File.SizeBytes,
		AccessCount:      o.AccessCount,
	}
	if o.Retrieval != nil {
		out.DownloadURL = o.Retrieval.URL
		out.DownloadExpires = o.Retrieval.ExpiresAt
	}
	return out
}
