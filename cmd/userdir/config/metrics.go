package config

import (
	"strings"

	"github.com/pkg/errors"
)

type metricsConf struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (c *metricsConf) validate() error {
	if !c.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Path, "/") || strings.HasPrefix(c.Path, "/api/") {
		return errors.Errorf("invalid metrics path '%s'", c.Path)
	}
	return nil
}

var defaultMetricsConf = metricsConf{
	Enabled: true,
	Path:    "/metrics",
}
