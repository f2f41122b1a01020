package redis_client

import (
	"fmt"
	"time"
)

type Config struct {
	// Enabled turns on the secret key and host sync.
	Enabled  bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	Host     string `mapstructure:"host" json:"host" yaml:"host" toml:"host" default:"127.0.0.1" validate:"required_if=Enabled true"`
	Port     string `mapstructure:"port" json:"port" yaml:"port" toml:"port" default:"6379"`
	Password string `mapstructure:"password" json:"-" yaml:"password" toml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db" toml:"db"`

	// KeyPrefix namespaces the synced sets: <prefix>:secret_keys and
	// <prefix>:allowed_hosts.
	KeyPrefix    string        `mapstructure:"key-prefix" json:"keyPrefix" yaml:"key-prefix" toml:"key-prefix" default:"imagevise"`
	SyncInterval time.Duration `mapstructure:"sync-interval" json:"syncInterval" yaml:"sync-interval" toml:"sync-interval" default:"30s" validate:"gte=0"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c *Config) SecretKeysKey() string {
	return c.KeyPrefix + ":secret_keys"
}

func (c *Config) AllowedHostsKey() string {
	return c.KeyPrefix + ":allowed_hosts"
}
