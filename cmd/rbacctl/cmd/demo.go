package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// demoCmd runs the create/assign/cascade-delete walk-through in a single
// process, since every other subcommand only sees the in-memory adapter for
// the lifetime of its own process invocation.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted create/assign/cascade-delete walkthrough",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := repo.CreateResource(ctx, "api://a"); err != nil {
			return err
		}
		if _, err := repo.CreateResource(ctx, "api://b"); err != nil {
			return err
		}
		names, err := repo.GetResources(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("resources: %v\n", names)

		if _, err := repo.CreateRole(ctx, "api://a", "reader"); err != nil {
			return err
		}
		if _, err := repo.CreateScope(ctx, "api://a", "prod"); err != nil {
			return err
		}
		if _, err := repo.CreateAssignment(ctx, "api://a", "reader", "arn:p1"); err != nil {
			return err
		}

		principals, err := repo.GetPrincipalsForRole(ctx, "api://a", "reader")
		if err != nil {
			return err
		}
		fmt.Printf("principals of api://a/reader: %v\n", principals)

		access, err := repo.GetPrincipalAccess(ctx, "arn:p1", "api://a", "")
		if err != nil {
			return err
		}
		fmt.Printf("access before delete: roles=%v scopes=%v\n", access.Roles, access.Scopes)

		if err := repo.DeleteResource(ctx, "api://a", ""); err != nil {
			return err
		}
		view, err := repo.GetResource(ctx, "api://a")
		if err != nil {
			return err
		}
		fmt.Printf("resource api://a after cascade delete: %v\n", view)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
