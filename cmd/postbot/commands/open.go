package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/postbot/internal/config"
	"github.com/ibeckermayer/postbot/internal/upload"
)

func newOpenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|downloads|db>",
		Short:     "Open the config file, download directory or database with the system handler.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "downloads", "db"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.openTarget(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return browser.OpenFile(path)
		},
	}
}

// openTarget resolves a target to a path, creating what is missing so the
// system handler has something to show.
func (c *cli) openTarget(target string) (string, error) {
	switch target {
	case "config":
		path := c.flags.configPath
		if path == "" {
			var err error
			if path, err = config.ConfigPath(); err != nil {
				return "", err
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := c.cfg.SaveFile(path); err != nil {
				return "", err
			}
		}
		return path, nil
	case "downloads":
		dir := upload.NewFilePreparer(c.cfg.Upload.DownloadDir).Dir()
		return dir, os.MkdirAll(dir, 0700)
	case "db":
		path, err := c.cfg.StoreFile()
		if err != nil {
			return "", err
		}
		return path, os.MkdirAll(filepath.Dir(path), 0700)
	}
	return "", fmt.Errorf("unknown target %q", target)
}
