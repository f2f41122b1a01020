package config

import (
	"sync"

	"github.com/spf13/viper"
)

type Validator interface {
	Validate() error
}

// Loader reads the layered config files of one base name and keeps the
// merged result for Bind.
type Loader struct {
	instance *viper.Viper
	files    []string
	opts     ConfigOptions
	mu       sync.RWMutex
}

type ConfigOptions struct {
	// BasePath is the directory holding the config files.
	BasePath string
	// FileName is the base name, "config" for config.yaml.
	FileName string
	FileType string
	// EnvPrefix is prepended to environment overrides, IMAGEVISE_SERVER_ADDR.
	EnvPrefix string
}
