package redis_client

import (
	"testing"
)

func TestConfig_Addr(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "standard localhost config",
			config:   Config{Host: "localhost", Port: "16379"},
			expected: "localhost:16379",
		},
		{
			name:     "custom host and port",
			config:   Config{Host: "redis.example.com", Port: "6380", DB: 1},
			expected: "redis.example.com:6380",
		},
		{
			name:     "IPv4 address",
			config:   Config{Host: "192.168.1.100", Port: "6379"},
			expected: "192.168.1.100:6379",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.Addr()
			if result != tt.expected {
				t.Errorf("Config.Addr() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestConfig_SetKeys(t *testing.T) {
	config := Config{KeyPrefix: "imagevise-eu"}

	if got := config.SecretKeysKey(); got != "imagevise-eu:secret_keys" {
		t.Errorf("Config.SecretKeysKey() = %v", got)
	}
	if got := config.AllowedHostsKey(); got != "imagevise-eu:allowed_hosts" {
		t.Errorf("Config.AllowedHostsKey() = %v", got)
	}
}
