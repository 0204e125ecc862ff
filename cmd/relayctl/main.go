// Package main is the entry point for the relayctl CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/relayctl/internal/config"
	"github.com/flemzord/relayctl/internal/core"
	"github.com/flemzord/relayctl/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Relay Telegram messages from one chat to another",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Persistent data directory")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.AddCommand(versionCmd(), startCmd(), configCmd(), serviceCmd())
	return root
}

// runParams collects the persistent flags.
func runParams(cmd *cobra.Command) (app.RunParams, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	levelName, _ := cmd.Flags().GetString("log-level")

	level, err := app.ParseLogLevel(levelName)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath: cfgPath,
		DataDir:    dataDir,
		LogLevel:   level,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "relayctl %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the relay with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			return app.Run(params)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				explicit = args[0]
			}
			return checkConfig(cmd.OutOrStdout(), explicit)
		},
	}
}

func checkConfig(out io.Writer, explicit string) error {
	cfg, path, err := config.LoadOrDefault(explicit)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, os.TempDir()).WithModuleConfigs(cfg.Modules)

	// Modules fall back to credentials; check them too when they are set.
	creds, credErr := config.LoadCredentials()
	if credErr == nil {
		appCtx.RegisterService(config.ServiceCredentials, creds)
	}

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		if credErr != nil {
			return errors.Join(err, credErr)
		}
		return err
	}
	defer application.Discard()

	if path == "" {
		path = "built-in defaults"
	}
	fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", path, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	if credErr != nil {
		fmt.Fprintf(out, "Warning: %v\n", credErr)
	}
	return nil
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _ := cmd.Flags().GetString("config")
			if target == "" {
				target = defaultConfigPath()
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}

			answers := config.DefaultAnswers()
			if err := config.RunWizard(&answers); err != nil {
				return err
			}
			raw, err := config.Render(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nSet RELAY_BOT_TOKEN and RELAY_OWNER_ID before starting.\n", target)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// defaultConfigPath is the first search location, the user config dir.
func defaultConfigPath() string {
	paths := config.SearchPaths()
	return paths[0]
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage relayctl as a system service",
	}
	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				params, err := runParams(cmd)
				if err != nil {
					return err
				}
				s, err := app.NewService(params)
				if err != nil {
					return err
				}
				if err := app.ControlService(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			s, err := app.NewService(params)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}
