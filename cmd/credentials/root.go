package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the credentials CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Credentials sign up and sign in service",
		Long: `credentials runs the sign up and sign in HTTP service and ships a small
client to register, sign in and inspect sessions against a running server.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSignUpCmd())
	cmd.AddCommand(NewSignInCmd())
	cmd.AddCommand(NewSessionCmd())
	cmd.AddCommand(NewStrengthCmd())

	return cmd
}
