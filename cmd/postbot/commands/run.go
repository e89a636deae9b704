package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/app"
	"github.com/ibeckermayer/postbot/internal/auth"
	"github.com/ibeckermayer/postbot/internal/elements"
	"github.com/ibeckermayer/postbot/internal/notifier"
	"github.com/ibeckermayer/postbot/internal/session"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/store"
)

// openStore opens the session and history database.
func (c *cli) openStore() (*store.Store, error) {
	path, err := c.cfg.StoreFile()
	if err != nil {
		return nil, err
	}
	return store.New(path)
}

func (c *cli) registry() (*elements.Registry, error) {
	if c.cfg.ElementsFile == "" {
		return elements.Default(), nil
	}
	return elements.LoadFile(c.cfg.ElementsFile)
}

// withApp spawns a session, runs op against it and shuts the session down.
// With keep_alive the command then blocks, refreshing the page, until it is
// interrupted.
func (c *cli) withApp(cmd *cobra.Command, op func(ctx context.Context, a *app.App) bool) error {
	ctx := cmd.Context()

	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	reg, err := c.registry()
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithHistory(st),
		app.WithPrompter(auth.NewTerminalPrompter()),
	}
	if c.cfg.Email.Enabled() {
		n, err := notifier.NewFromConfig(c.cfg.Email)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithNotifier(n))
	}

	printer := status.New(cmd.OutOrStdout())
	manager := session.NewManager(c.cfg,
		session.WithStore(st),
		session.WithRegistry(reg),
		session.WithStatus(printer),
	)
	a := app.New(c.cfg, manager, append(opts, app.WithStatus(printer))...)

	if err := a.Start(ctx); err != nil {
		return err
	}
	ok := op(ctx, a)

	// the session must be released even when the command was interrupted
	a.Shutdown(context.WithoutCancel(ctx))
	if a.KeptAlive() {
		printer.Stage("session kept alive, press Ctrl-C to stop refreshing")
		<-ctx.Done()
		a.StopKeepAlive()
		slog.Info("keep-alive stopped")
	}

	if !ok {
		return errFailed
	}
	return nil
}
