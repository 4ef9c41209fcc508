package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fuseinfotech/send2crm/internal/admin"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage access to the admin settings page",
	}

	setPasswordCmd := &cobra.Command{
		Use:   "set-password <username>",
		Short: "Set the basic auth credentials for the admin page",
		Long: `Stores a bcrypt hash of the password. The password is read from the
terminal, or from stdin when --password-stdin is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runAdminSetPassword,
	}
	setPasswordCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")

	cmd.AddCommand(setPasswordCmd)
	return cmd
}

func runAdminSetPassword(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")

	password, err := readPassword(cmd, fromStdin)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := admin.SetPassword(cmd.Context(), a.Store, args[0], password); err != nil {
		return err
	}
	return out.Success(fmt.Sprintf("Admin credentials stored for %s", strings.TrimSpace(args[0])), map[string]any{
		"username": strings.TrimSpace(args[0]),
	})
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("stdin is not a terminal, use --password-stdin")
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
