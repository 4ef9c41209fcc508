package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/version"
)

func newReleasesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "Inspect and download send2crm.js releases",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List releases at or above the minimum supported version",
		Args:  cobra.NoArgs,
		RunE:  runReleasesList,
	}

	downloadCmd := &cobra.Command{
		Use:   "download <version>",
		Short: "Download and verify a local copy of a release",
		Args:  cobra.ExactArgs(1),
		RunE:  runReleasesDownload,
	}
	downloadCmd.Flags().String("hash", "", "Expected sha384 integrity hash (fetched from the CDN when omitted)")

	cmd.AddCommand(listCmd, downloadCmd)
	return cmd
}

func runReleasesList(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Releases.FetchReleases(cmd.Context())
	if out.jsonMode {
		if err := out.Print(res); err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Message)
		}
		return nil
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	if len(res.Releases) == 0 {
		return out.Print("No releases found.")
	}

	pinned := version.StripV(a.Controller.GetSetting(cmd.Context(), settings.FieldJSVersion, "", ""))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tPUBLISHED\tLOCAL\tPINNED")
	for _, rel := range res.Releases {
		local, mark := "", ""
		if a.Assets.Exists(rel.Version()) {
			local = "yes"
		}
		if rel.Version() == pinned {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rel.TagName, rel.PublishedAt.Format("2006-01-02"), local, mark)
	}
	return w.Flush()
}

func runReleasesDownload(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	v := version.StripV(args[0])
	if !version.Valid(v) {
		return fmt.Errorf("%q is not a valid release version", args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	hash, _ := cmd.Flags().GetString("hash")
	if hash == "" && version.StripV(a.Controller.GetSetting(ctx, settings.FieldJSVersion, "", "")) == v {
		hash = a.Controller.GetSetting(ctx, settings.FieldJSHash, "", "")
	}
	if hash == "" {
		if hash, err = a.Assets.FetchHash(ctx, v); err != nil {
			return fmt.Errorf("integrity hash for version %s is unavailable: %w", v, err)
		}
	}

	file := a.Assets.Download(ctx, v, hash)
	if !file.Success {
		return fmt.Errorf("download of version %s failed: %s", v, file.Message)
	}
	msg := fmt.Sprintf("Version %s stored at %s", v, a.Assets.LocalPath(v))
	if file.Skipped {
		msg = fmt.Sprintf("Version %s is already stored at %s", v, a.Assets.LocalPath(v))
	}
	return out.Success(msg, map[string]any{"version": v, "file": file, "path": a.Assets.LocalPath(v)})
}
