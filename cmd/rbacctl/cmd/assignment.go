package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Manage principal-to-role Assignments",
}

var createAssignmentCmd = &cobra.Command{
	Use:   "create RESOURCE ROLE PRINCIPAL",
	Short: "Assign a principal to a role under a resource",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := repo.CreateAssignment(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("assigned %q to %q/%q\n", a.PrincipalID, a.ResourceName, a.RoleName)
		return nil
	},
}

var deleteAssignmentCmd = &cobra.Command{
	Use:   "delete RESOURCE ROLE PRINCIPAL",
	Short: "Remove a principal's assignment to a role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		etag, _ := cmd.Flags().GetString("etag")
		if err := repo.DeleteAssignment(cmd.Context(), args[0], args[1], args[2], etag); err != nil {
			return err
		}
		fmt.Printf("removed assignment %q/%q/%q\n", args[0], args[1], args[2])
		return nil
	},
}

var principalsForRoleCmd = &cobra.Command{
	Use:   "principals-for-role RESOURCE ROLE",
	Short: "List principals assigned to a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		principals, err := repo.GetPrincipalsForRole(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		for _, p := range principals {
			fmt.Println(p)
		}
		return nil
	},
}

var principalAccessCmd = &cobra.Command{
	Use:   "access PRINCIPAL RESOURCE [SCOPE]",
	Short: "Show a principal's roles and scopes under a resource",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := ""
		if len(args) == 3 {
			scope = args[2]
		}
		access, err := repo.GetPrincipalAccess(cmd.Context(), args[0], args[1], scope)
		if err != nil {
			return err
		}
		if access == nil {
			fmt.Printf("resource %q not found\n", args[1])
			return nil
		}
		fmt.Printf("principal %q on %q\n  scopes: %v\n  roles:  %v\n", access.PrincipalID, access.ResourceName, access.Scopes, access.Roles)
		return nil
	},
}

var deletePrincipalCmd = &cobra.Command{
	Use:   "delete-principal PRINCIPAL",
	Short: "Remove every assignment of a principal across all resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.DeletePrincipal(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed all assignments of %q\n", args[0])
		return nil
	},
}

func init() {
	deleteAssignmentCmd.Flags().String("etag", "", "expected ETag on the by-resource row (empty skips the precondition)")
	assignmentCmd.AddCommand(createAssignmentCmd, deleteAssignmentCmd, principalsForRoleCmd, principalAccessCmd, deletePrincipalCmd)
}
