package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Delete every stored send2crm option and local script copy",
		Args:  cobra.NoArgs,
		RunE:  runUninstall,
	}
	cmd.Flags().Bool("yes", false, "Confirm removal")
	return cmd
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errors.New("refusing to remove data without --yes")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.Uninstall(cmd.Context())
	if err != nil {
		return err
	}
	return out.Success(fmt.Sprintf("Removed %d options and %s", removed, a.Assets.Dir()), map[string]any{
		"options": removed,
		"assets":  a.Assets.Dir(),
	})
}
