// Command feedcat inspects published sheets from the terminal: it lists the
// records a feed would show, the featured record, and normalised CSV.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "feedcat:", err)
		stop()
		os.Exit(1)
	}
}
