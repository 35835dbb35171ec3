package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"flashbid/internal/bidstorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := bidstorm.NewCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bidstorm:", err)
		os.Exit(1)
	}
}
