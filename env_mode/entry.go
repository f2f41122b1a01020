// Package env_mode resolves the deployment mode from GO_ENV_MODE.
package env_mode

import (
	"os"
	"strings"
	"sync"
)

const ENV_MODE_KEY = "GO_ENV_MODE"

type ENV_MODE string

const (
	DevMode  ENV_MODE = "development"
	ProMode  ENV_MODE = "production"
	TestMode ENV_MODE = "test"
)

var (
	currentEnv ENV_MODE
	modeMu     sync.RWMutex
)

// ParseEnv normalizes a mode name. Unknown values fall back to DevMode.
func ParseEnv(env string) ENV_MODE {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the current mode, reading GO_ENV_MODE on first use.
func Mode() ENV_MODE {
	modeMu.RLock()
	mode := currentEnv
	modeMu.RUnlock()
	if mode != "" {
		return mode
	}

	modeMu.Lock()
	defer modeMu.Unlock()
	if currentEnv == "" {
		currentEnv = ParseEnv(os.Getenv(ENV_MODE_KEY))
	}
	return currentEnv
}

// SetMode overrides the mode for this process and its children.
func SetMode(mode ENV_MODE) {
	modeMu.Lock()
	defer modeMu.Unlock()
	os.Setenv(ENV_MODE_KEY, string(mode))
	currentEnv = mode
}

func IsDev() bool {
	return Mode() == DevMode
}

// Aliases lists the spellings of mode used in config file names, the
// canonical name first.
func Aliases(mode ENV_MODE) []string {
	switch mode {
	case ProMode:
		return []string{"production", "pro", "prod"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"development", "dev"}
	}
}
