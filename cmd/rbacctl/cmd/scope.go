package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage Scopes",
}

var createScopeCmd = &cobra.Command{
	Use:   "create RESOURCE SCOPE",
	Short: "Create a scope under a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := repo.CreateScope(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("created scope %q/%q (etag=%s)\n", scope.ResourceName, scope.ScopeName, scope.ETag)
		return nil
	},
}

var getScopeCmd = &cobra.Command{
	Use:   "get RESOURCE SCOPE",
	Short: "Get a scope",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := repo.GetScope(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if scope == nil {
			fmt.Printf("scope %q/%q not found\n", args[0], args[1])
			return nil
		}
		fmt.Printf("scope %q/%q (etag=%s)\n", scope.ResourceName, scope.ScopeName, scope.ETag)
		return nil
	},
}

var deleteScopeCmd = &cobra.Command{
	Use:   "delete RESOURCE SCOPE",
	Short: "Delete a scope",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		etag, _ := cmd.Flags().GetString("etag")
		if err := repo.DeleteScope(cmd.Context(), args[0], args[1], etag); err != nil {
			return err
		}
		fmt.Printf("deleted scope %q/%q\n", args[0], args[1])
		return nil
	},
}

func init() {
	deleteScopeCmd.Flags().String("etag", "", "expected ETag (empty skips the precondition)")
	scopeCmd.AddCommand(createScopeCmd, getScopeCmd, deleteScopeCmd)
}
