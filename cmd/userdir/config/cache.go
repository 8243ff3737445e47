package config

import (
	"github.com/redis/go-redis/v9"
)

// cachingConf configures the optional redis instance that holds the list of
// revoked session tokens. Without it revocations are kept in the database.
type cachingConf struct {
	RedisAddr string `yaml:"redis_addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RedisDB   int    `yaml:"redis_db"`
	Disabled  bool   `yaml:"disabled"`
}

// RedisOptions returns the redis connection options or nil if redis is not
// used
func (c cachingConf) RedisOptions() *redis.Options {
	if c.Disabled || c.RedisAddr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.RedisAddr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.RedisDB,
	}
}
