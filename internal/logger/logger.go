// Package logger sets up the logrus based internal and access logging.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	internalLogFile = "userdir.log"
	accessLogFile   = "access.log"
)

// Conf selects where a log is written to
type Conf struct {
	Dir    string
	StdErr bool
}

// Init initializes the internal logger with the passed destination and level
func Init(conf Conf, level string) error {
	w, err := writer(conf, internalLogFile)
	if err != nil {
		return err
	}
	log.SetOutput(w)
	log.SetFormatter(
		&log.TextFormatter{
			FullTimestamp: true,
		},
	)
	return SetLevel(level)
}

// SetLevel parses and applies the passed log level, e.g. "DEBUG" or "info"
func SetLevel(level string) error {
	if level == "" {
		level = "info"
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	log.SetLevel(l)
	return nil
}

// AccessLogWriter returns the writer the http access log should go to
func AccessLogWriter(conf Conf) (io.Writer, error) {
	return writer(conf, accessLogFile)
}

func writer(conf Conf, filename string) (io.Writer, error) {
	if conf.Dir == "" {
		return os.Stderr, nil
	}
	f, err := os.OpenFile(filepath.Join(conf.Dir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "could not open log file")
	}
	if conf.StdErr {
		return io.MultiWriter(os.Stderr, f), nil
	}
	return f, nil
}
