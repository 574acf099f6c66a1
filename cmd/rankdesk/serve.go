package main

import (
	"fmt"
	"strings"

	"github.com/rankdesk/rankdesk/server"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference rankings API on the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()

			srv, err := console.Server()
			if err != nil {
				return err
			}
			tlsConfig, err := console.ServerTLSConfig()
			if err != nil {
				return err
			}
			if address == "" {
				address = console.Config.ListenAddress
			}
			return srv.ListenAndServe(cmd.Context(), address, tlsConfig)
		},
	}
	cmd.Flags().StringVar(&address, "listen", "", "Listen address, overrides listen_address")
	return cmd
}

func newNotificationsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Print the notification history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := openConsole(cmd, opts)
			if err != nil {
				return err
			}
			defer console.Close()

			notifications, err := console.Notifications()
			if err != nil {
				return err
			}
			if limit > 0 && len(notifications) > limit {
				notifications = notifications[len(notifications)-limit:]
			}
			for _, n := range notifications {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s  %s: %s\n",
					n.Timestamp.Local().Format("2006-01-02 15:04:05"), strings.ToUpper(n.Level), n.Title, n.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show only the most recent notifications, 0 for all")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := server.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
