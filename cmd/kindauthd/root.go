package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for kindauthd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kindauthd",
		Short: "Operate a kindauth deployment",
		Long: `kindauthd runs maintenance tasks for kindauth: Postgres schema
migrations, the revoked-token sweeper and password hashing for seed data.
Settings come from KINDAUTH_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
