package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/guardshare/internal/client/cli"
	"github.com/dmitrijs2005/guardshare/internal/client/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	os.Exit(app.Run(ctx, os.Args[1:]))
}
