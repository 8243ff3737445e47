package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/purvisolanki/userdir/client"
)

// readPassword prompts for a password on a terminal or reads a line from
// the command's stdin otherwise
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", errors.WithStack(err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.WithStack(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printUser(w io.Writer, u client.UserRecord) {
	fmt.Fprintf(w, "ID:    %s\nName:  %s\nEmail: %s\nRole:  %s\n", u.ID, u.FullName(), u.Email, u.Role)
}

func (c *cli) loginCmd() *cobra.Command {
	var email string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			session, err := c.remote.Login(c.context(cmd), email, password)
			if err != nil {
				return err
			}
			session.Server = c.serverURL
			if err = c.sessionFile().Save(session); err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(), "Logged in as %s (%s) until %s\n", session.User.Email, session.User.Role,
				session.ExpiresAt.Local().Format("2006-01-02 15:04"),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "end the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.session.LoggedIn(timeNow()) {
				// an already ended session is fine
				if err := c.remote.Logout(c.context(cmd)); err != nil &&
					client.KindOf(err) != client.AuthenticationFailure {
					return err
				}
			}
			if err := c.sessionFile().Remove(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var draft client.UserInput
	var role string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "sign up a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			draft.Password = password
			draft.Role = client.Role(role)
			u, err := c.remote.Register(c.context(cmd), draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully signed up!")
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	userFlags(cmd, &draft.FirstName, &draft.LastName, &draft.Email, &role)
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "me",
		Short:   "show the logged in user",
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := client.NewAccount(c.remote, &c.session.User).Refresh(c.context(cmd))
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	var patch client.ProfilePatch
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "change the names of the logged in user",
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account := client.NewAccount(c.remote, &c.session.User)
			current, err := account.Refresh(c.context(cmd))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("first-name") {
				patch.FirstName = current.FirstName
			}
			if !cmd.Flags().Changed("last-name") {
				patch.LastName = current.LastName
			}
			u, err := account.UpdateProfile(c.context(cmd), patch)
			if err != nil {
				return err
			}
			c.session.User = u
			if err = c.sessionFile().Save(c.session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated successfully!")
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVar(&patch.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&patch.LastName, "last-name", "", "last name")
	return cmd
}
