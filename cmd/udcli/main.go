package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/purvisolanki/userdir/client"
)

var timeNow = time.Now

type cli struct {
	serverURL   string
	sessionPath string
	timeout     time.Duration
	debug       bool

	remote  *client.HTTPRemote
	session *client.Session
}

func (c *cli) config() client.Config {
	return client.Config{
		BaseURL:     c.serverURL,
		Timeout:     c.timeout,
		SessionFile: c.sessionPath,
	}
}

func (c *cli) sessionFile() client.SessionFile {
	return client.NewSessionFile(c.sessionPath)
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	log.SetLevel(log.WarnLevel)
	if c.debug {
		log.SetLevel(log.DebugLevel)
	}
	log.SetOutput(cmd.ErrOrStderr())
	s, err := c.sessionFile().Load()
	if err != nil {
		return err
	}
	c.session = s
	if c.serverURL == "" && s != nil {
		c.serverURL = s.Server
	}
	if c.serverURL == "" {
		c.serverURL = "http://localhost:5000"
	}
	c.remote = client.NewHTTPRemote(c.config(), log.StandardLogger())
	if s.LoggedIn(timeNow()) {
		c.remote.SetToken(s.Token)
	}
	return nil
}

// requireSession fails if there is no valid session
func (c *cli) requireSession(*cobra.Command, []string) error {
	if !c.session.LoggedIn(timeNow()) {
		return errors.New("not logged in; run 'udcli login' first")
	}
	return nil
}

func (c *cli) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:               "udcli",
		Short:             "udcli manages the user directory",
		Long:              "udcli manages the user directory: log in, list, search and edit users",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.PersistentFlags().StringVarP(
		&c.serverURL, "server", "s", os.Getenv("USERDIR_SERVER"), "url of the userdir server",
	)
	root.PersistentFlags().StringVar(
		&c.sessionPath, "session", client.DefaultSessionPath(), "file the session is stored in",
	)
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", client.DefaultTimeout, "timeout of each request")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.meCmd(),
		c.profileCmd(),
		c.listCmd(),
		c.createCmd(),
		c.updateCmd(),
		c.deleteCmd(),
		versionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
