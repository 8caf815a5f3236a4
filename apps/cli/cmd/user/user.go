package user

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	accountsrepo "github.com/sukuu-hq/sukuu/domains/accounts/repo"
	accountsservice "github.com/sukuu-hq/sukuu/domains/accounts/service"
	schoolsrepo "github.com/sukuu-hq/sukuu/domains/schools/repo"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

type flags struct {
	databaseURL    string
	platformSchema string
	// school selects the partition to operate in; empty means the platform
	// partition.
	school string
}

func (f *flags) register(c *cobra.Command) {
	c.PersistentFlags().StringVar(&f.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.PersistentFlags().StringVar(&f.platformSchema, "platform-schema", "public", "Platform schema name")
	c.PersistentFlags().StringVar(&f.school, "school", "", "School slug to operate in (empty targets the platform partition)")
}

// wire builds the accounts service and a context already bound to the
// selected partition.
func (f *flags) wire(ctx context.Context) (context.Context, *accountsservice.Service, *pgxpool.Pool, error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.databaseURL})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init pool: %w", err)
	}

	space := tenant.PublicSpace(f.platformSchema)
	if f.school != "" {
		store, err := persistence.NewSchoolStore(pool, f.platformSchema)
		if err != nil {
			persistence.ClosePool(pool)
			return nil, nil, nil, fmt.Errorf("init school store: %w", err)
		}
		school, err := schoolsrepo.NewPostgresRepository(store).GetBySlug(ctx, f.school)
		if err != nil {
			persistence.ClosePool(pool)
			return nil, nil, nil, fmt.Errorf("resolve school %q: %w", f.school, err)
		}
		space = school.Space()
	}

	schoolDB := persistence.NewSchoolDB(persistence.SchoolDBConfig{
		Pool:           pool,
		PlatformSchema: f.platformSchema,
	})
	userStore, err := persistence.NewUserStore(schoolDB)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, nil, fmt.Errorf("init user store: %w", err)
	}

	svc := accountsservice.New(accountsrepo.NewPostgresRepository(userStore))
	return tenant.WithSpace(ctx, space), svc, pool, nil
}

// Command groups user management operations.
func Command() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the platform or a school partition",
	}
	f.register(cmd)

	cmd.AddCommand(createCommand(f))
	cmd.AddCommand(listCommand(f))
	return cmd
}

func createCommand(f *flags) *cobra.Command {
	var (
		role       string
		email      string
		fullName   string
		password   string
		mustRotate bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a user with the given role in the selected partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, svc, pool, err := f.wire(context.Background())
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			if password == "" {
				password = os.Getenv("SUKUU_USER_PASSWORD")
			}

			input := accountsservice.CreateInput{
				Email:              email,
				FullName:           fullName,
				Password:           password,
				MustChangePassword: mustRotate,
			}

			var created accountsservice.User
			switch role {
			case "platform-admin":
				created, err = svc.CreatePlatformAdmin(ctx, input)
			case "school-admin":
				created, err = svc.CreateSchoolAdmin(ctx, input)
			case "teacher":
				created, err = svc.CreateTeacher(ctx, input)
			case "student":
				created, err = svc.CreateStudent(ctx, input)
			case "parent":
				created, err = svc.CreateParent(ctx, input)
			default:
				return fmt.Errorf("invalid role %q (use platform-admin, school-admin, teacher, student or parent)", role)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s (%s)\n", role, created.Email, created.ID)
			return nil
		},
	}

	c.Flags().StringVar(&role, "role", "", "Role: platform-admin, school-admin, teacher, student or parent")
	c.Flags().StringVar(&email, "email", "", "Email address")
	c.Flags().StringVar(&fullName, "full-name", "", "Full name")
	c.Flags().StringVar(&password, "password", "", "Initial password (or SUKUU_USER_PASSWORD)")
	c.Flags().BoolVar(&mustRotate, "must-change-password", true, "Require a password change on first login")

	_ = c.MarkFlagRequired("role")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("full-name")

	return c
}

func listCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users in the selected partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, svc, pool, err := f.wire(context.Background())
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			result, err := svc.List(ctx, 1, 100)
			if err != nil {
				return err
			}

			space, err := tenant.MustFromContext(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tACTIVE\tID")
			for _, u := range result.Users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.Email, u.FullName, accountsservice.RoleOf(u, space).Label(), u.IsActive, u.ID)
			}
			return tw.Flush()
		},
	}
}
