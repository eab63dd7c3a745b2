package cmd

import (
	"fmt"

	"github.com/Iron-Ham/wormhole/internal/container"
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage application group containers",
	Long: `Manage application group containers.

A group must be added before any process can pass messages through it.
Groups live under the groups root, which defaults to
$XDG_DATA_HOME/wormhole/groups and can be changed with groups.root or
$` + container.EnvGroupsDir + `.`,
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group>",
	Short: "Create a group container",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupAdd,
}

var groupPathCmd = &cobra.Command{
	Use:   "path <group>",
	Short: "Print the container directory of a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupPath,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioned groups",
	Args:  cobra.NoArgs,
	RunE:  runGroupList,
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupPathCmd)
	groupCmd.AddCommand(groupListCmd)
}

func groupResolver() (*container.Resolver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return container.NewResolver(cfg.Groups.Root), nil
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	r, err := groupResolver()
	if err != nil {
		return err
	}
	dir, err := r.Provision(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Group %s ready at %s\n", args[0], dir)
	return nil
}

func runGroupPath(cmd *cobra.Command, args []string) error {
	r, err := groupResolver()
	if err != nil {
		return err
	}
	dir, err := r.Path(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	r, err := groupResolver()
	if err != nil {
		return err
	}
	groups, err := r.Groups()
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintf(out, "No groups under %s\n", r.Root)
		return nil
	}
	for _, g := range groups {
		fmt.Fprintln(out, g)
	}
	return nil
}
