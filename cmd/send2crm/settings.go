package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fuseinfotech/send2crm/internal/notice"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change stored settings",
	}

	getCmd := &cobra.Command{
		Use:   "get [field]",
		Short: "Show one setting, or every registered setting",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSettingsGet,
	}

	setCmd := &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Validate and store a setting",
		Long: `Stores a setting through the same pipeline as the admin form: the value
is sanitized and validated, and changing the pinned version or the CDN flag
fetches the integrity hash and manages the local copy.`,
		Args: cobra.ExactArgs(2),
		RunE: runSettingsSet,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print every settings group as YAML",
		Args:  cobra.NoArgs,
		RunE:  runSettingsExport,
	}

	cmd.AddCommand(getCmd, setCmd, exportCmd)
	return cmd
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if len(args) == 1 {
		name := fieldName(a.Registry.Slug(), args[0])
		l := a.Controller.Lookup(ctx, name, "")
		if !l.Found {
			return fmt.Errorf("setting %s is not set", name)
		}
		if out.jsonMode {
			return out.Print(map[string]string{"name": name, "value": l.Value})
		}
		return out.Print(l.Value)
	}

	values := make(map[string]string)
	fields := a.Registry.Fields()
	for _, f := range fields {
		values[f.Name] = a.Controller.GetSetting(ctx, f.Name, f.Group, "")
	}
	if out.jsonMode {
		return out.Print(values)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tGROUP\tVALUE")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Group, values[f.Name])
	}
	return w.Flush()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	name := fieldName(a.Registry.Slug(), args[0])
	if _, ok := a.Registry.Field(name); !ok {
		return fmt.Errorf("unknown setting %s", name)
	}

	var list notice.List
	ctx := notice.WithList(cmd.Context(), &list)
	if err := a.Controller.UpdateSetting(ctx, name, args[1], ""); err != nil {
		return err
	}

	notices := list.All()
	if list.HasErrors() {
		if out.jsonMode {
			_ = out.Print(map[string]any{"success": false, "notices": notices})
		}
		return errors.New(joinNotices(notices, notice.TypeError))
	}
	for _, n := range notices {
		if n.Type == notice.TypeWarning {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", n.Message)
		}
	}
	return out.Success("Settings saved.", map[string]any{
		"name":    name,
		"value":   a.Controller.GetSetting(cmd.Context(), name, "", ""),
		"notices": notices,
	})
}

func runSettingsExport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	doc := make(map[string]map[string]string)
	for _, g := range a.Registry.Groups() {
		blob, err := a.Options.Get(ctx, g.OptionName)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", g.OptionName, err)
		}
		if blob == nil {
			blob = map[string]string{}
		}
		doc[g.OptionName] = blob
	}

	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		return newOutputFormatter(cmd).Print(doc)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

// fieldName accepts a field name with or without the plugin prefix, so
// "api_key" and "send2crm_api_key" name the same setting.
func fieldName(slug, arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, slug+"_") {
		return arg
	}
	return slug + "_" + arg
}

func joinNotices(notices []notice.Notice, typ notice.Type) string {
	var msgs []string
	for _, n := range notices {
		if n.Type == typ {
			msgs = append(msgs, n.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
