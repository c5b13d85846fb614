package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/graphrag-backend/internal/app"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Close(closeCtx)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", runErr)
		os.Exit(1)
	}
}
