package main

import (
	"context"
	"fmt"
	"log"

	"github.com/dmitrijs2005/gophsubmit/internal/client/cli"
	"github.com/dmitrijs2005/gophsubmit/internal/client/config"
)

// Set with -ldflags "-X main.buildVersion=..."
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
)

func main() {
	fmt.Printf("Build version: %s\nBuild date: %s\n", buildVersion, buildDate)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
