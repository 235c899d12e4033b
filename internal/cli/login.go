package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an API token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "API token: ")
			token, err := readToken()
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if token == "" {
				return fmt.Errorf("empty token")
			}
			if err := app.saveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			app.engine.SetAuthToken(token)

			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", app.tokenPath())
			return nil
		},
	}
}

// readToken hides the input when stdin is a terminal and falls back to a
// plain line read when it is not (pipes, tests).
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
