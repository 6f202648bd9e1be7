package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/logging"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the credentials file",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := openCredentials(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		names := creds.Usernames()
		if len(names) == 0 {
			fmt.Fprintf(out, "No users in %s.\n", creds.Path())
			return nil
		}

		fmt.Fprintf(out, "%-20s  %-24s  %s\n", "Username", "Name", "Email")
		fmt.Fprintln(out, strings.Repeat("─", 72))
		for _, name := range names {
			u, _ := creds.Lookup(name)
			fmt.Fprintf(out, "%-20s  %-24s  %s\n", name, truncate(u.DisplayName(), 24), u.Email)
		}
		return nil
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user to the credentials file",
	Long: "Add a user with a bcrypt-hashed password. Without --password the\n" +
		"password is read from the first line of standard input.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")

		if password == "" {
			p, err := readPassword(cmd)
			if err != nil {
				return err
			}
			password = p
		}

		creds, err := openCredentials(cmd)
		if err != nil {
			return err
		}
		gate, err := auth.NewGate(creds, "", logging.Nop())
		if err != nil {
			return err
		}

		reg, err := gate.Register(auth.Registration{
			Email:    email,
			Username: args[0],
			Name:     name,
			Password: password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) to %s\n", reg.Username, reg.Email, creds.Path())
		return nil
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given on standard input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openCredentials opens the file named by --credentials, falling back to
// MATHPAD_CREDENTIALS and then config.yaml.
func openCredentials(cmd *cobra.Command) (*auth.FileStore, error) {
	path, _ := cmd.Flags().GetString("credentials")
	if path == "" {
		path = os.Getenv("MATHPAD_CREDENTIALS")
	}
	if path == "" {
		path = "config.yaml"
	}
	creds, err := auth.OpenFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	return creds, nil
}

func init() {
	usersCmd.PersistentFlags().String("credentials", "", "Path to the credentials YAML file (overrides MATHPAD_CREDENTIALS)")

	usersAddCmd.Flags().String("email", "", "Email address")
	usersAddCmd.Flags().String("name", "", "Display name")
	usersAddCmd.Flags().String("password", "", "Password (read from stdin when omitted)")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
}
