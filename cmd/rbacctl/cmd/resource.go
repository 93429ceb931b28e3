package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage Resources",
}

var createResourceCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := repo.CreateResource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created resource %q (etag=%s)\n", resource.ResourceName, resource.ETag)
		return nil
	},
}

var getResourceCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Get a resource and its scopes/roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := repo.GetResource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if view == nil {
			fmt.Printf("resource %q not found\n", args[0])
			return nil
		}
		fmt.Printf("resource %q\n  scopes: %v\n  roles:  %v\n", view.Name, view.Scopes, view.Roles)
		return nil
	},
}

var listResourcesCmd = &cobra.Command{
	Use:   "list",
	Short: "List every resource",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := repo.GetResources(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var deleteResourceCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Cascade-delete a resource, its scopes, roles, and assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		etag, _ := cmd.Flags().GetString("etag")
		if err := repo.DeleteResource(cmd.Context(), args[0], etag); err != nil {
			return err
		}
		fmt.Printf("deleted resource %q\n", args[0])
		return nil
	},
}

func init() {
	deleteResourceCmd.Flags().String("etag", "", "expected ETag (empty skips the precondition)")
	resourceCmd.AddCommand(createResourceCmd, getResourceCmd, listResourcesCmd, deleteResourceCmd)
}
