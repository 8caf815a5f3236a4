package school

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	schoolsrepo "github.com/sukuu-hq/sukuu/domains/schools/repo"
	schoolsservice "github.com/sukuu-hq/sukuu/domains/schools/service"
	"github.com/sukuu-hq/sukuu/platform/persistence"
)

type flags struct {
	databaseURL    string
	platformSchema string
	envKey         string
	mediaDir       string
}

func (f *flags) register(c *cobra.Command) {
	c.PersistentFlags().StringVar(&f.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.PersistentFlags().StringVar(&f.platformSchema, "platform-schema", "public", "Platform schema name")
	c.PersistentFlags().StringVar(&f.envKey, "env-key", "dev", "Environment key prefix for partition names (e.g. dev, stg, prod)")
	c.PersistentFlags().StringVar(&f.mediaDir, "media-dir", "./.data/media", "Base directory for school media prefixes")
}

// wire builds the registry service against a live pool. The returned closer
// must run after the command finishes.
func (f *flags) wire(ctx context.Context) (*schoolsservice.Service, *pgxpool.Pool, error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewSchoolStore(pool, f.platformSchema)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init school store: %w", err)
	}

	svc := schoolsservice.New(
		schoolsrepo.NewPostgresRepository(store),
		persistence.NewProvisioner(pool, f.platformSchema),
		persistence.NewMediaProvisioner(f.mediaDir),
		f.envKey,
	)
	return svc, pool, nil
}

// Command groups school registry operations.
func Command() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "school",
		Short: "Manage the school registry (create, list, domains, teardown)",
	}
	f.register(cmd)

	cmd.AddCommand(createCommand(f))
	cmd.AddCommand(listCommand(f))
	cmd.AddCommand(deleteCommand(f))
	cmd.AddCommand(addDomainCommand(f))
	cmd.AddCommand(removeDomainCommand(f))
	cmd.AddCommand(domainsCommand(f))
	return cmd
}

func createCommand(f *flags) *cobra.Command {
	var (
		slug      string
		name      string
		shortName string
		system    string
		domain    string
		email     string
		city      string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a school and provision its partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			school, err := svc.Create(ctx, schoolsservice.CreateInput{
				Slug:            slug,
				Name:            name,
				ShortName:       shortName,
				EducationSystem: schoolsservice.EducationSystem(system),
				Email:           email,
				City:            city,
				PrimaryDomain:   domain,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created school %s (%s)\n", school.Slug, school.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  schema: %s\n  role:   %s\n  media:  %s\n", school.SchemaName, school.RoleName, school.MediaPrefix)
			return nil
		},
	}

	c.Flags().StringVar(&slug, "slug", "", "Kebab-case slug (immutable)")
	c.Flags().StringVar(&name, "name", "", "Full school name")
	c.Flags().StringVar(&shortName, "short-name", "", "Short display name")
	c.Flags().StringVar(&system, "education-system", "both", "Education system: basic, shs or both")
	c.Flags().StringVar(&domain, "domain", "", "Primary hostname to bind (optional)")
	c.Flags().StringVar(&email, "email", "", "Contact email")
	c.Flags().StringVar(&city, "city", "", "City")

	_ = c.MarkFlagRequired("slug")
	_ = c.MarkFlagRequired("name")

	return c
}

func listCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active schools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			result, err := svc.List(ctx, schoolsservice.ListOptions{PageSize: 100})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tNAME\tSYSTEM\tSCHEMA\tID")
			for _, s := range result.Schools {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Slug, s.DisplayName(), s.EducationSystem, s.SchemaName, s.ID)
			}
			return tw.Flush()
		},
	}
}

func deleteCommand(f *flags) *cobra.Command {
	var confirm string

	c := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Tear a school down (drops its partition, role and media)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			school, err := svc.GetBySlug(ctx, args[0])
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, school.ID, confirm); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted school %s (%s)\n", school.Slug, school.ID)
			return nil
		},
	}

	c.Flags().StringVar(&confirm, "confirm", "", "Must repeat the school slug; teardown is irreversible")
	_ = c.MarkFlagRequired("confirm")

	return c
}

func addDomainCommand(f *flags) *cobra.Command {
	var primary bool

	c := &cobra.Command{
		Use:   "add-domain <slug> <hostname>",
		Short: "Bind a hostname to a school",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			school, err := svc.GetBySlug(ctx, args[0])
			if err != nil {
				return err
			}
			if err := svc.AddDomain(ctx, schoolsservice.Domain{
				Domain:    args[1],
				SchoolID:  school.ID,
				IsPrimary: primary,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to %s\n", args[1], school.Slug)
			return nil
		},
	}

	c.Flags().BoolVar(&primary, "primary", false, "Mark as the school's primary hostname")
	return c
}

func removeDomainCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-domain <hostname>",
		Short: "Drop a hostname binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			if err := svc.RemoveDomain(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func domainsCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "domains <slug>",
		Short: "List a school's hostname bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, pool, err := f.wire(ctx)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			school, err := svc.GetBySlug(ctx, args[0])
			if err != nil {
				return err
			}
			domains, err := svc.ListDomains(ctx, school.ID)
			if err != nil {
				return err
			}

			for _, d := range domains {
				marker := ""
				if d.IsPrimary {
					marker = " (primary)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", d.Domain, marker)
			}
			return nil
		},
	}
}
