// Command postbot signs in to a creator site through an automated browser
// and publishes posts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibeckermayer/postbot/cmd/postbot/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
