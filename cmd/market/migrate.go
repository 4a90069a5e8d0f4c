package main

import (
	"fmt"

	"github.com/fjod/go_market/internal/catalog"
	"github.com/fjod/go_market/internal/config"
	"github.com/fjod/go_market/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL and catalog migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			repo, err := repository.NewRepository(credentials(cfg))
			if err != nil {
				return err
			}
			defer repo.Close()
			if err := repo.RunMigrations(credentials(cfg)); err != nil {
				return fmt.Errorf("orders migrations: %w", err)
			}

			products, err := catalog.NewRepository(cfg.CatalogDBPath)
			if err != nil {
				return err
			}
			defer products.Close()
			if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
				return fmt.Errorf("catalog migrations: %w", err)
			}

			log.Info("migrations applied")
			return nil
		},
	}
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
}
