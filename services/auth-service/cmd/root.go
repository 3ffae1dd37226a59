package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the auth-service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth-service",
		Short: "LMS account, session and password recovery service",
		Long: `auth-service handles LMS signup and login, refresh tokens, and
OTP based password recovery. All settings are read from the environment.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewPurgeCmd())

	return cmd
}
