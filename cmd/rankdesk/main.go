package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rankdesk/rankdesk"
	"github.com/rankdesk/rankdesk/domain"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rankdesk:", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir string
	logLevel  string
	apiURL    string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "rankdesk",
		Short:         "Manage the phone processor rankings collection",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory (defaults to the user config dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides log_level")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "API base URL, overrides api_url")

	cmd.AddCommand(
		newServeCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newProcessorsCommand(opts),
		newNotificationsCommand(opts),
		newConfigCommand(opts),
		newHashPasswordCommand(),
	)
	return cmd
}

// openConsole loads the configuration and builds a console that prints notifications to stderr.
func openConsole(cmd *cobra.Command, opts *globalOptions) (*rankdesk.Console, error) {
	configDir := opts.configDir
	if configDir == "" {
		dir, err := rankdesk.DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	cfg, err := rankdesk.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.apiURL != "" {
		cfg.APIURL = opts.apiURL
	}
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := rankdesk.NewLogger(level)
	if err != nil {
		return nil, err
	}

	return rankdesk.New(
		rankdesk.WithConfig(cfg),
		rankdesk.WithLogger(logger),
		rankdesk.WithDisplay(printNotification(cmd.ErrOrStderr())),
	)
}

func printNotification(w io.Writer) func(domain.Notification) {
	return func(notification domain.Notification) {
		fmt.Fprintf(w, "[%s] %s\n", notification.Title, notification.Message)
	}
}

func newLoginCommand(opts *globalOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()
			return console.Login(cmd.Context(), username, password)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()
			return console.Logout()
		},
	}
}

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()
			return console.Config.Set(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()
			fmt.Fprintln(cmd.OutOrStdout(), console.Config.ConfigDir)
			return nil
		},
	})
	return cmd
}
