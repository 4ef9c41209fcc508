package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fuseinfotech/send2crm/internal/app"
	"github.com/fuseinfotech/send2crm/internal/config"
	"github.com/fuseinfotech/send2crm/internal/logging"
	"github.com/fuseinfotech/send2crm/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "send2crm",
		Short: "Send2CRM settings and release manager",
		Long: `send2crm stores the Send2CRM API key and domain, pins a release of the
send2crm.js snippet, keeps a verified local copy when the CDN is not used,
and serves the admin settings page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (defaults to $SEND2CRM_HOME/config.yaml)")

	rootCmd.AddCommand(
		newServeCommand(),
		newReleasesCommand(),
		newSettingsCommand(),
		newAdminCommand(),
		newUninstallCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// OutputFormatter handles output in JSON or human-readable format
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
}

// newOutputFormatter creates a formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout()}
}

// Print outputs data as indented JSON, or as-is when it is a string.
func (f *OutputFormatter) Print(data any) error {
	if s, ok := data.(string); ok && !f.jsonMode {
		fmt.Fprintln(f.out, s)
		return nil
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(f.out, string(b))
	return nil
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]any) error {
	if f.jsonMode {
		output := map[string]any{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	fmt.Fprintln(f.out, message)
	return nil
}

// loadConfig reads the --config file plus SEND2CRM_* overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.NewLoader().Load(file)
}

// openApp loads the configuration and wires the application. Logs go to
// the command's stderr.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Setup(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise send2crm: %w", err)
	}
	return a, nil
}
