package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the send2crm version and the pinned script release",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	current := version.String()

	// The pinned release is informational; an unreadable store is reported
	// rather than failing the command.
	var pinned, storeErr string
	if a, err := openApp(cmd); err != nil {
		storeErr = err.Error()
	} else {
		defer a.Close()
		pinned = a.Controller.GetSetting(cmd.Context(), settings.FieldJSVersion, "", "")
	}

	if out.jsonMode {
		data := map[string]any{"send2crm": current, "script": pinned}
		if storeErr != "" {
			data["error"] = storeErr
		}
		return out.Print(data)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "send2crm: %s\n", version.FormatVersion(current))
	switch {
	case storeErr != "":
		fmt.Fprintf(w, "Script: unavailable (%s)\n", storeErr)
	case pinned == "":
		fmt.Fprintln(w, "Script: not pinned")
	default:
		fmt.Fprintf(w, "Script: %s\n", version.FormatVersion(pinned))
	}
	return nil
}
