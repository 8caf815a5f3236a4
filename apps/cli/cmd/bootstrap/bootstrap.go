package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	accountsrepo "github.com/sukuu-hq/sukuu/domains/accounts/repo"
	accountsservice "github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// ghanaRegions is the reference seed applied by `bootstrap platform`.
// Districts are imported separately; only the region level ships built in.
var ghanaRegions = []struct {
	Name string
	Code string
}{
	{"Ahafo", "AF"},
	{"Ashanti", "AH"},
	{"Bono", "BO"},
	{"Bono East", "BE"},
	{"Central", "CP"},
	{"Eastern", "EP"},
	{"Greater Accra", "AA"},
	{"North East", "NE"},
	{"Northern", "NP"},
	{"Oti", "OT"},
	{"Savannah", "SV"},
	{"Upper East", "UE"},
	{"Upper West", "UW"},
	{"Volta", "TV"},
	{"Western", "WP"},
	{"Western North", "WN"},
}

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (schema, reference data, first admin)",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL    string
		platformSchema string
		seedRegions    bool
		adminEmail     string
		adminFullName  string
		adminPassword  string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Create the platform schema, seed reference data and the first platform admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapPlatformSchema(ctx, pool, platformSchema); err != nil {
				return fmt.Errorf("bootstrap platform schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Platform schema %q ready.\n", platformSchema)

			if seedRegions {
				regionStore, err := persistence.NewRegionStore(pool, platformSchema)
				if err != nil {
					return fmt.Errorf("init region store: %w", err)
				}
				for _, r := range ghanaRegions {
					if _, err := regionStore.SeedRegion(ctx, r.Name, r.Code); err != nil {
						return fmt.Errorf("seed region %s: %w", r.Name, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d regions.\n", len(ghanaRegions))
			}

			if adminEmail == "" {
				return nil
			}

			if adminPassword == "" {
				adminPassword = os.Getenv("SUKUU_ADMIN_PASSWORD")
			}
			if strings.TrimSpace(adminPassword) == "" {
				return errors.New("admin password is required (flag --admin-password or SUKUU_ADMIN_PASSWORD)")
			}

			schoolDB := persistence.NewSchoolDB(persistence.SchoolDBConfig{
				Pool:           pool,
				PlatformSchema: platformSchema,
			})
			userStore, err := persistence.NewUserStore(schoolDB)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}
			userSvc := accountsservice.New(accountsrepo.NewPostgresRepository(userStore))

			// The first admin lives in the platform partition.
			platformCtx := tenant.WithSpace(ctx, tenant.PublicSpace(platformSchema))

			if existing, err := userSvc.GetByEmail(platformCtx, adminEmail); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Platform admin already exists: %s (%s)\n", existing.Email, existing.ID)
				return nil
			} else if !errors.Is(err, accountsservice.ErrNotFound) {
				return fmt.Errorf("lookup platform admin: %w", err)
			}

			admin, err := userSvc.CreatePlatformAdmin(platformCtx, accountsservice.CreateInput{
				Email:              adminEmail,
				FullName:           adminFullName,
				Password:           adminPassword,
				MustChangePassword: true,
			})
			if err != nil {
				return fmt.Errorf("create platform admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Platform admin: %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.Flags().StringVar(&platformSchema, "platform-schema", "public", "Platform schema name")
	c.Flags().BoolVar(&seedRegions, "seed-regions", true, "Seed the built-in region reference data")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Initial platform admin email (skips admin creation when empty)")
	c.Flags().StringVar(&adminFullName, "admin-full-name", "", "Initial platform admin full name")
	c.Flags().StringVar(&adminPassword, "admin-password", "", "Initial platform admin password (or SUKUU_ADMIN_PASSWORD)")

	return c
}
