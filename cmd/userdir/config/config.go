// Package config loads the yaml configuration of the userdir server.
package config

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/purvisolanki/userdir"
)

// Config holds the configuration of the userdir server
type Config struct {
	Server  userdir.ServerConf `yaml:"server"`
	Logging loggingConf        `yaml:"logging"`
	Storage storageConf        `yaml:"storage"`
	Auth    AuthConf           `yaml:"auth"`
	Caching cachingConf        `yaml:"caching"`
	Metrics metricsConf        `yaml:"metrics"`
}

type configValidator interface {
	validate() error
}

var c *Config

var configFileName = "config.yaml"

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/userdir/config",
	"/userdir",
	"/etc/userdir",
}

var defaultConfig = Config{
	Server: userdir.ServerConf{
		Port: 5000,
	},
	Logging: defaultLoggingConf,
	Storage: defaultStorageConf,
	Auth:    defaultAuthConf,
	Metrics: defaultMetricsConf,
}

// Get returns the loaded Config
func Get() Config {
	if c == nil {
		return defaultConfig
	}
	return *c
}

// Load reads the config file, validates it and makes it available through
// Get. If filename is empty the usual locations are searched.
// It exits the program if the configuration cannot be loaded.
func Load(filename string) {
	data, err := readConfigFile(filename)
	if err != nil {
		log.WithError(err).Fatal("could not read config file")
	}
	conf, err := load(data)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	c = conf
}

func readConfigFile(filename string) ([]byte, error) {
	if filename != "" {
		data, err := os.ReadFile(filename)
		return data, errors.WithStack(err)
	}
	for _, dir := range possibleConfigLocations {
		path := filepath.Join(dir, configFileName)
		if fileutils.FileExists(path) {
			log.WithField("file", path).Debug("found config file")
			data, err := os.ReadFile(path)
			return data, errors.WithStack(err)
		}
	}
	return nil, errors.Errorf("could not find config file '%s' in any of %v", configFileName, possibleConfigLocations)
}

func load(data []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// validate calls validate on every section that has one
func (cfg *Config) validate() error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		if !fieldVal.CanAddr() {
			continue
		}
		if validator, ok := fieldVal.Addr().Interface().(configValidator); ok {
			if err := validator.validate(); err != nil {
				return errors.Errorf("validation failed for field '%s': %s", t.Field(i).Name, err.Error())
			}
		}
	}
	return nil
}
