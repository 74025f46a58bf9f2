package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/db"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/services"
)

func openDatabase() (*sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-role USERNAME ROLE",
		Short: "Change a user's role (developer, approver or admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			users := repositories.NewUserRepository(sqlx.NewDb(database, "postgres"))
			user, err := services.NewAuthService(users, nil).SetRole(cmd.Context(), nil, args[0], models.Role(args[1]))
			if err != nil {
				var se *services.Error
				if errors.As(err, &se) {
					return errors.New(se.Message)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Username, user.Role)
			return nil
		},
	})
	return cmd
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close()

			if args[0] != "version" {
				if err := db.RunMigrations(database, args[0]); err != nil {
					return err
				}
			}
			v, dirty, err := db.GetMigrationVersion(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %v)\n", v, dirty)
			return nil
		},
	}
	return cmd
}
