package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir"
	"github.com/purvisolanki/userdir/cmd/userdir/config"
	"github.com/purvisolanki/userdir/internal/logger"
	"github.com/purvisolanki/userdir/internal/token"
	"github.com/purvisolanki/userdir/internal/version"
	"github.com/purvisolanki/userdir/storage"
	"github.com/purvisolanki/userdir/storage/model"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging.Internal.Logger(), c.Logging.Internal.Level); err != nil {
		log.WithError(err).Fatal("could not init logger")
	}
	log.WithField("version", version.VERSION).Info("Loaded Config")

	backs, err := config.LoadStorageBackends(c.Storage)
	if err != nil {
		log.Fatal(err)
	}
	if opts := c.Caching.RedisOptions(); opts != nil {
		revocations, err := storage.NewRedisRevocationStorage(context.Background(), opts)
		if err != nil {
			log.WithError(err).Fatal("could not init redis revocation list")
		}
		backs.Revocations = revocations
		log.Info("Loaded Redis revocation list")
	}

	if err = bootstrapAdmin(backs.Users, c.Auth); err != nil {
		log.Fatal(err)
	}

	tokens, err := token.NewIssuer(c.Auth.Issuer, []byte(c.Auth.Secret), c.Auth.TokenLifetime.Duration())
	if err != nil {
		log.Fatal(err)
	}

	accessLog, err := logger.AccessLogWriter(c.Logging.Access.Logger())
	if err != nil {
		log.Fatal(err)
	}
	opts := userdir.Options{
		AccessLog:  accessLog,
		CookieName: c.Auth.CookieName,
	}
	if c.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Registry = reg
		opts.MetricsPath = c.Metrics.Path
	}

	server, err := userdir.NewServer(c.Server, backs, tokens, opts)
	if err != nil {
		log.Fatal(err)
	}
	log.Info("Initialized server")
	server.Start()
}

// bootstrapAdmin creates the configured administrator if the directory is
// still empty
func bootstrapAdmin(users model.UsersStore, conf config.AuthConf) error {
	admin := conf.BootstrapAdmin
	if !admin.Enabled() {
		return nil
	}
	count, err := users.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	in := model.UserInput{
		FirstName: admin.FirstName,
		LastName:  admin.LastName,
		Email:     admin.Email,
		Password:  admin.Password,
		Role:      model.RoleAdmin,
	}
	if err = model.Validate(in); err != nil {
		return errors.Wrap(err, "invalid bootstrap admin")
	}
	u, err := users.Create(in)
	if err != nil {
		return errors.Wrap(err, "could not create bootstrap admin")
	}
	log.WithField("email", u.Email).Info("Created bootstrap admin")
	return nil
}
