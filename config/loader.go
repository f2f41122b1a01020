// Package config loads the service configuration from layered YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/leeforge/imagevise/env_mode"
)

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "IMAGEVISE",
	}
}

// NewLoader reads every config file that exists for the current mode.
// Having no file at all is fine: defaults and environment still apply.
func NewLoader(opts ConfigOptions) (*Loader, error) {
	if opts.FileName == "" {
		opts.FileName = "config"
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}

	l := &Loader{opts: opts}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the config files. The previous state is kept on error.
func (l *Loader) Reload() error {
	files := existingFiles(l.candidateFiles())

	v := viper.New()
	v.SetConfigType(l.opts.FileType)
	for _, file := range files {
		layer := viper.New()
		layer.SetConfigFile(file)
		if err := layer.ReadInConfig(); err != nil {
			return fmt.Errorf("❌ Error reading config file %s: %w", file, err)
		}
		// Later files win key by key.
		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			return fmt.Errorf("❌ Error merging config file %s: %w", file, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.instance = v
	l.files = files
	return nil
}

// Files returns the config files that were read, in merge order.
func (l *Loader) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.files...)
}

// Bind fills target from the merged files and the environment. Fields
// left unset take their `default` tag.
func (l *Loader) Bind(target any) error {
	if target == nil {
		return fmt.Errorf("❌ Target instance is nil")
	}
	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("❌ Failed to set defaults: %w", err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	v := viper.New()
	if err := v.MergeConfigMap(l.instance.AllSettings()); err != nil {
		return fmt.Errorf("❌ Failed to copy config: %w", err)
	}
	bindEnv(v, l.opts.EnvPrefix, reflect.TypeOf(target), "")

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("❌ Failed to unmarshal config (path: %s, file: %s.%s): %w",
			l.opts.BasePath, l.opts.FileName, l.opts.FileType, err)
	}

	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("❌ Failed to set defaults after unmarshal: %w", err)
	}

	if val, ok := target.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("❌ Config validation failed: %w", err)
		}
	}
	return nil
}

// Get returns a raw value from the merged files.
func (l *Loader) Get(key string) any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instance.Get(key)
}

// bindEnv registers an environment variable for every mapstructure key
// of t, so overrides work even when no file mentions the key.
// server.read-timeout is read from <PREFIX>_SERVER_READ_TIMEOUT.
func bindEnv(v *viper.Viper, prefix string, t reflect.Type, parent string) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")
		name := tag[0]
		if name == "-" {
			continue
		}
		if name == "" && len(tag) > 1 && tag[1] == "squash" {
			bindEnv(v, prefix, field.Type, parent)
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}

		key := name
		if parent != "" {
			key = parent + "." + name
		}

		if field.Type.Kind() == reflect.Struct {
			bindEnv(v, prefix, field.Type, key)
			continue
		}
		_ = v.BindEnv(key, envName(prefix, key))
	}
}

func envName(prefix, key string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}

// candidateFiles lists config[.local][.<env>][.local] in merge order.
// Every alias of the current mode is tried.
func (l *Loader) candidateFiles() []string {
	name := l.opts.FileName
	names := []string{name, name + ".local"}
	for _, alias := range env_mode.Aliases(env_mode.Mode()) {
		names = append(names, name+"."+alias, name+"."+alias+".local")
	}

	files := make([]string, 0, len(names))
	for _, n := range names {
		files = append(files, filepath.Join(l.opts.BasePath, n+"."+l.opts.FileType))
	}
	return files
}

func existingFiles(candidates []string) []string {
	var files []string
	for _, file := range candidates {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			files = append(files, file)
		}
	}
	return files
}
