package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cptspacemanspiff/power-status/internal/config"
)

var (
	configPath string
	verbose    bool
	logTopics  string
	once       bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power-status",
		Short: "power-status prints a battery and backlight status line",
		Long: `power-status prints one status line per refresh to stdout, suitable for
feeding a status bar. It refreshes on a timer, whenever the battery reports a
change and right after the machine resumes from sleep.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(os.Stderr, parseTopics(verbose, logTopics))
			cfg, path, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if once {
				return runOnce(cfg, cmd.OutOrStdout(), logger)
			}
			return run(cmd.Context(), cfg, path, cmd.OutOrStdout(), logger)
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&configPath, "config", "", "config file path (default $XDG_CONFIG_HOME/power-status/config.toml)")
	globalFlags.BoolVar(&verbose, "verbose", false, "enable all verbose logging (equivalent to --log=all)")
	globalFlags.StringVar(&logTopics, "log", "", "comma-separated log topics: battery,backlight,bar,watch,sleep,storage,mqtt (or 'all')")
	cmd.Flags().BoolVar(&once, "once", false, "print a single line and exit")

	cmd.AddCommand(
		NewConfigCommand(),
		NewResetDBCommand(),
	)

	return cmd
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "power-status", "config.toml"), nil
}

// loadConfig loads the given file, or the default file when path is empty.
// A missing default file means built-in defaults; the returned path is then
// empty and nothing is watched.
func loadConfig(path string) (*config.Config, string, error) {
	explicit := path != ""
	if !explicit {
		p, err := defaultConfigPath()
		if err != nil {
			return config.DefaultConfig(), "", nil
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), "", nil
	}
	return nil, "", fmt.Errorf("load config %s: %w", path, err)
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init PATH",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func NewResetDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-db",
		Short: "Delete the sample database and start fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := resetDB(cfg.Storage.DBPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database deleted: %s\n", cfg.Storage.DBPath)
			return nil
		},
	}
}

func resetDB(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete database: %w", err)
		}
	}
	return nil
}
