package client

import (
	"context"

	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
)

type Client interface {
	Close() error
	View(ctx context.Context, req linkaccess.Request) (*linkaccess.Outcome, error)
	Download(ctx context.Context, req linkaccess.Request) (*linkaccess.Outcome, error)
}
