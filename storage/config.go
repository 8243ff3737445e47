package storage

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/purvisolanki/userdir/storage/model"
)

// DriverType names the database the directory is kept in
type DriverType string

// Supported drivers
const (
	DriverSQLite   DriverType = "sqlite"
	DriverMySQL    DriverType = "mysql"
	DriverPostgres DriverType = "postgres"
)

// sqliteFile is the database file created in Config.DataDir
const sqliteFile = "userdir.db"

var defaultPorts = map[DriverType]int{
	DriverMySQL:    3306,
	DriverPostgres: 5432,
}

// DSNConf holds the server connection parameters of MySQL and PostgreSQL
type DSNConf struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
}

// DSN builds the connection string of a server based driver. SQLite has no
// dsn; it is addressed by file.
func DSN(driver DriverType, conf DSNConf) (string, error) {
	port, ok := defaultPorts[driver]
	if !ok {
		if driver == DriverSQLite {
			return "", errors.Errorf("driver %s does not use dsn", driver)
		}
		return "", errors.Errorf("unsupported driver '%s'", driver)
	}
	if conf.Port != 0 {
		port = conf.Port
	}
	if driver == DriverMySQL {
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True",
			conf.User, conf.Password, conf.Host, port, conf.DB,
		), nil
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d",
		conf.Host, conf.User, conf.Password, conf.DB, port,
	), nil
}

// Config selects and tunes the directory database
type Config struct {
	Driver DriverType `yaml:"driver"`
	// DSN is the connection string; for sqlite it is the file path and
	// defaults to userdir.db in DataDir
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
	// Debug logs every sql statement
	Debug bool `yaml:"debug"`
	// UsersHash tunes the argon2id hashing of user passwords
	UsersHash Argon2idParams `yaml:"password_hashing"`
}

// Argon2idParams are the argon2id cost parameters
type Argon2idParams struct {
	Time        uint32 `yaml:"time"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
	KeyLen      uint32 `yaml:"key_len"`
	SaltLen     uint32 `yaml:"salt_len"`
}

func (cfg Config) dialector() (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.DSN != "" {
			return sqlite.Open(cfg.DSN), nil
		}
		return sqlite.Open(filepath.Join(cfg.DataDir, sqliteFile)), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	}
	return nil, errors.Errorf("unsupported database driver: %s", cfg.Driver)
}

// Connect opens the database described by cfg
func Connect(cfg Config) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}
	return gorm.Open(
		dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logMode),
		},
	)
}

// LoadStorageBackends opens and migrates the database and returns its
// stores. Token revocations live in the database; callers may swap in a
// redis backed RevocationStore afterwards.
func LoadStorageBackends(cfg Config) (model.Backends, error) {
	s, err := NewStorage(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	return s.Backends(), nil
}
