package main

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/purvisolanki/userdir/client"
)

func userFlags(cmd *cobra.Command, firstName, lastName, email, role *string) {
	cmd.Flags().StringVar(firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(lastName, "last-name", "", "last name")
	cmd.Flags().StringVarP(email, "email", "e", "", "email address")
	cmd.Flags().StringVar(role, "role", string(client.RoleUser), "role, one of admin and user")
}

// directory returns a cache whose notifications are printed to the command
// output
func (c *cli) directory(cmd *cobra.Command) *client.DirectoryCache {
	dir := client.NewDirectoryCache(c.remote, client.WithLogger(log.StandardLogger()))
	out := cmd.OutOrStdout()
	logNotification := client.LogNotifier(log.StandardLogger())
	dir.Subscribe(
		func(n client.Notification) {
			logNotification(n)
			if n.Success && n.Op != client.OpLoad {
				fmt.Fprintln(out, n.Message)
			}
		},
	)
	return dir
}

func (c *cli) listCmd() *cobra.Command {
	var view client.View
	var page int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list users",
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if page < 1 {
				return errors.Errorf("invalid page %d: pages start at 1", page)
			}
			dir := c.directory(cmd)
			defer dir.Close()
			records, err := dir.Load(c.context(cmd))
			if err != nil {
				return err
			}
			view.Page = page - 1
			result := view.Apply(records)
			if err = renderTable(cmd.OutOrStdout(), result.Records); err != nil {
				return err
			}
			pages := max(result.Pages, 1)
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d, %d users\n", result.Page+1, pages, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&view.Search, "search", "q", "", "only show users whose name or email contains this")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page to show")
	cmd.Flags().IntVarP(&view.RowsPerPage, "rows", "r", client.DefaultRowsPerPage, "users per page")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var draft client.UserInput
	var role string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "create a user",
		Args:    cobra.NoArgs,
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			draft.Password = password
			draft.Role = client.Role(role)
			dir := c.directory(cmd)
			defer dir.Close()
			u, err := dir.Create(c.context(cmd), draft)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	userFlags(cmd, &draft.FirstName, &draft.LastName, &draft.Email, &role)
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var firstName, lastName, email, role string
	cmd := &cobra.Command{
		Use:     "update ID",
		Short:   "change name, email or role of a user",
		Args:    cobra.ExactArgs(1),
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			dir := c.directory(cmd)
			defer dir.Close()
			records, err := dir.Load(c.context(cmd))
			if err != nil {
				return err
			}
			var patch *client.UserPatch
			for _, r := range records {
				if r.ID == id {
					p := client.PatchOf(r)
					patch = &p
					break
				}
			}
			if patch == nil {
				return errors.Errorf("no user with id '%s'", id)
			}
			flags := cmd.Flags()
			if flags.Changed("first-name") {
				patch.FirstName = firstName
			}
			if flags.Changed("last-name") {
				patch.LastName = lastName
			}
			if flags.Changed("email") {
				patch.Email = email
			}
			if flags.Changed("role") {
				patch.Role = client.Role(role)
			}
			u, err := dir.Update(c.context(cmd), id, *patch)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	userFlags(cmd, &firstName, &lastName, &email, &role)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "delete users",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: c.requireSession,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.directory(cmd)
			defer dir.Close()
			for _, id := range args {
				if err := dir.Remove(c.context(cmd), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
