// Package commands implements the postbot command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/logging"
	"github.com/ibeckermayer/postbot/internal/session"
	"github.com/ibeckermayer/postbot/internal/telemetry"
)

var version = "dev"

// errFailed marks an operation that ran but did not succeed. Its details
// were already logged.
var errFailed = errors.New("operation failed")

// Exit codes.
const (
	exitOK     = 0
	exitFatal  = 1
	exitFailed = 2
)

type globalFlags struct {
	configPath  string
	envFile     string
	browserType string
	loginMethod string
	debug       bool
	verbose     bool
	trace       bool
	showWindow  bool
	keepAlive   bool
	forceUpload bool
}

// cli is the state shared by every command of one invocation.
type cli struct {
	flags         globalFlags
	cfg           *config.Config
	stopTelemetry func(context.Context) error
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "postbot",
		Short:         "postbot drives a browser session to sign in and publish posts.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.stopTelemetry != nil {
				return c.stopTelemetry(cmd.Context())
			}
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.flags.configPath, "config", "", "config file (default <user config dir>/postbot/config.toml)")
	f.StringVar(&c.flags.envFile, "env", ".env", "dotenv file with POSTBOT_<METHOD>_USERNAME/PASSWORD")
	f.StringVar(&c.flags.browserType, "browser", "", "browser engine: auto, chrome, docker, remote-auto, remote-chrome, remote-browserless, reconnect")
	f.StringVar(&c.flags.loginMethod, "login", "", "login method: auto, form, twitter, google")
	f.BoolVar(&c.flags.debug, "debug", false, "fill everything in but cancel instead of saving or posting")
	f.BoolVarP(&c.flags.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&c.flags.trace, "trace", false, "print trace spans to stderr")
	f.BoolVar(&c.flags.showWindow, "show-window", false, "run a local browser with a visible window")
	f.BoolVar(&c.flags.keepAlive, "keep-alive", false, "leave the session running after the command")
	f.BoolVar(&c.flags.forceUpload, "force-upload", false, "post even when uploads have not finished in time")

	root.AddCommand(
		newLoginCmd(c),
		newPostCmd(c),
		newResetCmd(c),
		newHistoryCmd(c),
		newBotTestCmd(c),
		newOpenCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	logging.Setup(cmd.ErrOrStderr(), c.flags.verbose)

	if c.flags.trace {
		stop, err := telemetry.Setup(cmd.ErrOrStderr(), version)
		if err != nil {
			return err
		}
		c.stopTelemetry = stop
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	c.applyFlags(cmd, cfg)
	if err := cfg.ApplyEnv(c.flags.envFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.flags.configPath != "" {
		return config.LoadFile(c.flags.configPath)
	}
	return config.Load()
}

// applyFlags overrides config values with flags given on the command line.
func (c *cli) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("browser") {
		cfg.BrowserType = c.flags.browserType
	}
	if changed("login") {
		cfg.LoginMethod = c.flags.loginMethod
	}
	if changed("debug") {
		cfg.Debug = c.flags.debug
	}
	if changed("show-window") {
		cfg.ShowWindow = c.flags.showWindow
	}
	if changed("keep-alive") {
		cfg.KeepAlive = c.flags.keepAlive
	}
	if changed("force-upload") {
		cfg.ForceUpload = c.flags.forceUpload
	}
}

// ExecuteContext runs the command line and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	return execute(ctx, newRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	var fatal *session.FatalError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &fatal):
		fmt.Fprintln(stderr, err)
		return exitFatal
	case errors.Is(err, errFailed):
		return exitFailed
	default:
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
}
