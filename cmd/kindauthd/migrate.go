package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/kindauth/config"
	pgstore "github.com/MrEthical07/kindauth/store/postgres"
)

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

var newMigrator = func(databaseURL string) (migrator, error) {
	return pgstore.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		Long:      `Apply (default) or roll back the kindauth tables in KINDAUTH_DATABASE_URL.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE:      runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}

	env, err := config.Load()
	if err != nil {
		return err
	}
	if env.DatabaseURL == "" {
		return errors.New("KINDAUTH_DATABASE_URL is required")
	}

	m, err := newMigrator(env.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case "down":
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("migrate %s: schema version %d (dirty=%t)\n", direction, v, dirty)
	return nil
}
