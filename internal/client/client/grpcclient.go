package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *linkaccess.Client
	accessToken string
	dialOpts    []grpc.DialOption
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewLinkAccessClient connects to endpointURL. An empty accessToken makes
// anonymous calls.
func NewLinkAccessClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, dialOpts: opts}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = linkaccess.NewClient(conn)
	return nil
}

func (s *GRPCClient) View(ctx context.Context, req linkaccess.Request) (*linkaccess.Outcome, error) {
	out, err := s.client.View(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) Download(ctx context.Context, req linkaccess.Request) (*linkaccess.Outcome, error) {
	out, err := s.client.Download(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// mapError turns status errors into package sentinels. The server names
// the decision in the status message, which separates the two kinds that
// share codes.Unauthenticated.
func (s *GRPCClient) mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.NotFound:
		return ErrNotFound
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.FailedPrecondition:
		return ErrExpired
	case codes.ResourceExhausted:
		return ErrLimitReached
	case codes.Unauthenticated:
		switch st.Message() {
		case "invalid_credentials":
			return ErrInvalidCredentials
		case "auth_required":
			return ErrAuthRequired
		default:
			return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
		}
	default:
		return err
	}
}
