package cli

import (
	"fmt"

	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/spf13/cobra"
)

func migrateCmd(opts *options) *cobra.Command {
	var catalogOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending migrations to the orders database (MIGRATIONS_PATH) and,
when CATALOG_MIGRATIONS_PATH is set, to the furniture catalog.

Examples:
  woodyctl migrate
  CATALOG_DRIVER=sqlite CATALOG_MIGRATIONS_PATH=internal/catalog/migrations/sqlite woodyctl migrate --catalog-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !catalogOnly {
				creds := cfg.OrdersCredentials()
				repo, err := repository.NewRepository(creds)
				if err != nil {
					return err
				}
				defer repo.Close()

				if err := repo.RunMigrations(creds); err != nil {
					return err
				}
				log.Info("orders migrations applied", "path", creds.MigrationsDirPath)
				fmt.Fprintln(out, "orders: up to date")
			}

			if cfg.CatalogMigrationsPath == "" {
				if catalogOnly {
					return fmt.Errorf("CATALOG_MIGRATIONS_PATH is not set")
				}
				return nil
			}

			catalogRepo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN())
			if err != nil {
				return err
			}
			defer catalogRepo.Close()

			if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
				return err
			}
			log.Info("catalog migrations applied", "driver", cfg.CatalogDriver, "path", cfg.CatalogMigrationsPath)
			fmt.Fprintf(out, "catalog (%s): up to date\n", cfg.CatalogDriver)
			return nil
		},
	}

	cmd.Flags().BoolVar(&catalogOnly, "catalog-only", false, "skip the orders database")
	return cmd
}
