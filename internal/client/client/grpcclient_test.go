package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
)

type fakeServer struct {
	lastToken string
	lastReq   linkaccess.Request
	err       error
}

func (f *fakeServer) reply(ctx context.Context, in *structpb.Struct, url string) (*structpb.Struct, error) {
	f.lastReq = linkaccess.RequestFromStruct(in)
	f.lastToken = ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
			f.lastToken = v[0]
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return linkaccess.Outcome{LinkID: f.lastReq.LinkID, FileID: "f1", AccessCount: 1, DownloadURL: url}.Struct()
}

func (f *fakeServer) View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return f.reply(ctx, in, "")
}

func (f *fakeServer) Download(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return f.reply(ctx, in, "https://blobs.test/x")
}

func newTestClient(t *testing.T, token string) (*GRPCClient, *fakeServer) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fake := &fakeServer{}
	linkaccess.Register(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewLinkAccessClient("passthrough:///bufconn", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

func TestGRPCClient_SendsTokenWhenSet(t *testing.T) {
	c, fake := newTestClient(t, "tok-123")

	out, err := c.Download(context.Background(), linkaccess.Request{LinkID: "abc", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.test/x", out.DownloadURL)
	assert.Equal(t, "tok-123", fake.lastToken)
	assert.Equal(t, linkaccess.Request{LinkID: "abc", Password: "pw"}, fake.lastReq)
}

func TestGRPCClient_AnonymousWithoutToken(t *testing.T) {
	c, fake := newTestClient(t, "")

	_, err := c.View(context.Background(), linkaccess.Request{LinkID: "abc"})
	require.NoError(t, err)
	assert.Empty(t, fake.lastToken)
}

func TestGRPCClient_MapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "not_found"), ErrNotFound},
		{"forbidden", status.Error(codes.PermissionDenied, "forbidden"), ErrForbidden},
		{"expired", status.Error(codes.FailedPrecondition, "expired"), ErrExpired},
		{"limit", status.Error(codes.ResourceExhausted, "limit_reached"), ErrLimitReached},
		{"password", status.Error(codes.Unauthenticated, "invalid_credentials"), ErrInvalidCredentials},
		{"login", status.Error(codes.Unauthenticated, "auth_required"), ErrAuthRequired},
		{"token", status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error()), ErrUnauthorized},
	}
	c, fake := newTestClient(t, "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.err = tt.err
			_, err := c.View(context.Background(), linkaccess.Request{LinkID: "abc"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
