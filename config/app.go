package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	validatorV10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/logging"
	"github.com/leeforge/imagevise/media/processor"
	"github.com/leeforge/imagevise/media/settings"
	"github.com/leeforge/imagevise/redis_client"
)

// AppConfig is the whole service configuration.
type AppConfig struct {
	Server  ServerConfig        `mapstructure:"server" json:"server" yaml:"server"`
	Render  RenderConfig        `mapstructure:"render" json:"render" yaml:"render"`
	Fetch   FetchConfig         `mapstructure:"fetch" json:"fetch" yaml:"fetch"`
	OSS     OSSConfig           `mapstructure:"oss" json:"oss" yaml:"oss"`
	Redis   redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
	Metrics MetricsConfig       `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
	Log     logging.Config      `mapstructure:"log" json:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr" json:"addr" yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout   time.Duration `mapstructure:"read-timeout" json:"readTimeout" yaml:"read-timeout" default:"30s"`
	WriteTimeout  time.Duration `mapstructure:"write-timeout" json:"writeTimeout" yaml:"write-timeout" default:"60s"`
	ShutdownGrace time.Duration `mapstructure:"shutdown-grace" json:"shutdownGrace" yaml:"shutdown-grace" default:"15s"`

	// MaxConcurrentRenders caps renders in flight. 0 means one per CPU.
	MaxConcurrentRenders int `mapstructure:"max-concurrent-renders" json:"maxConcurrentRenders" yaml:"max-concurrent-renders" validate:"gte=0"`
	// RenderWait is how long a request may queue for a render slot. 0 waits
	// for as long as the client does.
	RenderWait time.Duration `mapstructure:"render-wait" json:"renderWait" yaml:"render-wait" validate:"gte=0"`
}

type RenderConfig struct {
	SecretKeys        []string `mapstructure:"secret-keys" json:"-" yaml:"secret-keys"`
	AllowedHosts      []string `mapstructure:"allowed-hosts" json:"allowedHosts" yaml:"allowed-hosts"`
	FilesystemSources []string `mapstructure:"filesystem-sources" json:"filesystemSources" yaml:"filesystem-sources"`

	CacheLifetime int   `mapstructure:"cache-lifetime" json:"cacheLifetime" yaml:"cache-lifetime" default:"2592000" validate:"gt=0"`
	MaxSourceSize int64 `mapstructure:"max-source-size" json:"maxSourceSize" yaml:"max-source-size" default:"50331648" validate:"gt=0"`

	FormatRejectStatus int      `mapstructure:"format-reject-status" json:"formatRejectStatus" yaml:"format-reject-status" default:"400" validate:"gte=400,lte=599"`
	TokenMode          string   `mapstructure:"token-mode" json:"tokenMode" yaml:"token-mode" default:"path" validate:"oneof=path query"`
	SourceFormats      []string `mapstructure:"source-formats" json:"sourceFormats" yaml:"source-formats"`
	OutputFormats      []string `mapstructure:"output-formats" json:"outputFormats" yaml:"output-formats"`
	TempDir            string   `mapstructure:"temp-dir" json:"tempDir" yaml:"temp-dir"`
	RaiseErrors        bool     `mapstructure:"raise-errors" json:"raiseErrors" yaml:"raise-errors"`
}

type FetchConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http-timeout" json:"httpTimeout" yaml:"http-timeout" default:"5s" validate:"gt=0"`
}

type OSSConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKeyID     string `mapstructure:"access-key-id" json:"accessKeyId" yaml:"access-key-id" validate:"required_if=Enabled true"`
	AccessKeySecret string `mapstructure:"access-key-secret" json:"-" yaml:"access-key-secret" validate:"required_if=Enabled true"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Addr      string `mapstructure:"addr" json:"addr" yaml:"addr" default:":9090" validate:"required_if=Enabled true"`
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace" default:"imagevise"`
}

var validate = validatorV10.New()

// Validate checks the field constraints and the format names.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Render.Sources(); err != nil {
		return fmt.Errorf("render.source-formats: %w", err)
	}
	if _, err := c.Render.Outputs(); err != nil {
		return fmt.Errorf("render.output-formats: %w", err)
	}
	return nil
}

// Sources returns the permitted source formats. Empty means the defaults.
func (c RenderConfig) Sources() ([]processor.Format, error) {
	return processor.ParseFormats(c.SourceFormats)
}

// Outputs returns the permitted output formats. Empty means the defaults.
func (c RenderConfig) Outputs() ([]processor.Format, error) {
	return processor.ParseFormats(c.OutputFormats)
}

// Apply copies the tables and limits onto s, replacing what it held.
func (c RenderConfig) Apply(s *settings.Settings) error {
	s.ReplaceSecretKeys(c.SecretKeys)
	s.ReplaceAllowedHosts(c.AllowedHosts)
	s.ReplaceFilesystemSources(c.FilesystemSources)
	if err := s.SetCacheLifetime(c.CacheLifetime); err != nil {
		return err
	}
	return s.SetMaxSourceSize(c.MaxSourceSize)
}

// Load reads and validates the configuration described by opts.
func Load(opts ConfigOptions) (*AppConfig, *Loader, error) {
	loader, err := NewLoader(opts)
	if err != nil {
		return nil, nil, err
	}
	cfg := &AppConfig{}
	if err := loader.Bind(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// WatchApp calls onChange with a freshly bound AppConfig after every
// file change. A change that does not validate is logged and skipped.
func WatchApp(ctx context.Context, loader *Loader, onChange func(cfg *AppConfig)) error {
	logger := logging.Named("config")
	return loader.Watch(ctx, func(e fsnotify.Event) {
		cfg := &AppConfig{}
		if err := loader.Bind(cfg); err != nil {
			logger.Error("config.rejected", zap.Error(err))
			return
		}
		onChange(cfg)
	})
}
