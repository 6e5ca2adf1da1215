package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries the settings for both testbed services. Components receive
// it at construction; there is no process-wide configuration state.
type Config struct {
	// Plugin file server
	PluginDir        string `json:"plugin_dir"`
	PluginListenAddr string `json:"plugin_listen_addr"`

	// Registry (Nacos-style) settings for the user service
	RegistryURL string `json:"registry_url"`
	ServiceName string `json:"service_name"`
	ServiceIP   string `json:"service_ip"`
	ServicePort int    `json:"service_port"`
	NamespaceID string `json:"namespace_id"`
	GroupName   string `json:"group_name"`

	// User service
	UserListenAddr   string `json:"user_listen_addr"`
	UserSeedFile     string `json:"user_seed_file"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`

	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the built-in defaults, matching the original
// testbed deployment layout.
func DefaultConfig() *Config {
	return &Config{
		PluginDir:         "/data/higress-data/wasm",
		PluginListenAddr:  "0.0.0.0:8888",
		RegistryURL:       "http://127.0.0.1:8848",
		ServiceName:       "user-service",
		ServiceIP:         "127.0.0.1",
		ServicePort:       8082,
		NamespaceID:       "public",
		GroupName:         "DEFAULT_GROUP",
		UserListenAddr:    "0.0.0.0:8082",
		HeartbeatSeconds:  30,
		LogLevel:          "info",
	}
}

// Load builds a Config from defaults, an optional JSON config file, and
// TB_* environment overrides, in that priority order. A missing config
// file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv("TB_CONFIG_PATH")
		if configPath == "" {
			configPath = "testbed.json"
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays standard TB_* environment variables onto the config.
func (c *Config) applyEnv() {
	setString := func(key string, field *string) {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	setString("TB_PLUGIN_DIR", &c.PluginDir)
	setString("TB_PLUGIN_LISTEN_ADDR", &c.PluginListenAddr)
	setString("TB_REGISTRY_URL", &c.RegistryURL)
	setString("TB_SERVICE_NAME", &c.ServiceName)
	setString("TB_SERVICE_IP", &c.ServiceIP)
	setString("TB_NAMESPACE_ID", &c.NamespaceID)
	setString("TB_GROUP_NAME", &c.GroupName)
	setString("TB_USER_LISTEN_ADDR", &c.UserListenAddr)
	setString("TB_USER_SEED_FILE", &c.UserSeedFile)
	setString("TB_LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("TB_SERVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.ServicePort = port
		}
	}
	if v := os.Getenv("TB_HEARTBEAT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HeartbeatSeconds = n
		}
	}
}

// Validate normalizes out-of-range values and rejects settings that can
// never produce a working process.
func (c *Config) Validate() error {
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("invalid service port %d", c.ServicePort)
	}
	if c.PluginDir == "" {
		return fmt.Errorf("plugin directory must not be empty")
	}
	if c.RegistryURL == "" {
		return fmt.Errorf("registry URL must not be empty")
	}
	return nil
}

// HeartbeatInterval returns the heartbeat cadence as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}
