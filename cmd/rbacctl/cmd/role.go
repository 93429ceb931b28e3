package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage Roles",
}

var createRoleCmd = &cobra.Command{
	Use:   "create RESOURCE ROLE",
	Short: "Create a role under a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := repo.CreateRole(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("created role %q/%q (etag=%s)\n", role.ResourceName, role.RoleName, role.ETag)
		return nil
	},
}

var getRoleCmd = &cobra.Command{
	Use:   "get RESOURCE ROLE",
	Short: "Get a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := repo.GetRole(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if role == nil {
			fmt.Printf("role %q/%q not found\n", args[0], args[1])
			return nil
		}
		fmt.Printf("role %q/%q (etag=%s)\n", role.ResourceName, role.RoleName, role.ETag)
		return nil
	},
}

var deleteRoleCmd = &cobra.Command{
	Use:   "delete RESOURCE ROLE",
	Short: "Delete a role and cascade-delete its assignments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		etag, _ := cmd.Flags().GetString("etag")
		if err := repo.DeleteRole(cmd.Context(), args[0], args[1], etag); err != nil {
			return err
		}
		fmt.Printf("deleted role %q/%q\n", args[0], args[1])
		return nil
	},
}

func init() {
	deleteRoleCmd.Flags().String("etag", "", "expected ETag (empty skips the precondition)")
	roleCmd.AddCommand(createRoleCmd, getRoleCmd, deleteRoleCmd)
}
