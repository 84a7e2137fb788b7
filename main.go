package main

import (
	"context"
	"os"

	"github.com/m-mizutani/giji/pkg/cli"
	"github.com/m-mizutani/giji/pkg/utils/logging"
)

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args); err != nil {
		logging.Default().Error("command failed", "message", err.Message)
		os.Exit(err.Code)
	}
}
