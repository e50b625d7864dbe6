// Command server runs the GuardShare HTTP API and the link access gRPC service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/guardshare/internal/server"
	"github.com/dmitrijs2005/guardshare/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "guardshare: %v\n", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
