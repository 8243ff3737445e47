package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/purvisolanki/userdir/storage"
	"github.com/purvisolanki/userdir/storage/model"
)

type storageConf struct {
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool                   `yaml:"debug"`
	PasswordHashing storage.Argon2idParams `yaml:"password_hashing"`
}

func (c *storageConf) validate() error {
	if c.Driver == (storage.DriverSQLite) {
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("error in storage conf: data_dir must be specified")
		}
		return nil
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver:  storage.DriverSQLite,
	DataDir: ".",
	DSNConf: storage.DSNConf{
		User: "userdir",
		Host: "localhost",
		DB:   "userdir",
	},
	PasswordHashing: storage.Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
		SaltLen:     16,
	},
}

// LoadStorageBackends loads and returns the storage backends for the passed config
func LoadStorageBackends(c storageConf) (model.Backends, error) {
	cfg := storage.Config{
		Driver:    c.Driver,
		DSN:       c.DSN,
		DataDir:   c.DataDir,
		Debug:     c.Debug,
		UsersHash: c.PasswordHashing,
	}
	backs, err := storage.LoadStorageBackends(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	log.WithField("driver", c.Driver).Info("Loaded storage backend")
	return backs, nil
}
