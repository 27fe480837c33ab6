// Package config provides configuration for the coordinator and its agents.
//
// Values come from environment variables. An optional YAML or TOML file named by
// MCP_CONFIG_FILE supplies defaults for the same keys; environment variables win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at an optional config file.
const ConfigFileEnv = "MCP_CONFIG_FILE"

// Config holds the coordinator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Dispatch
	DispatchTimeout   time.Duration
	SchedulerInterval time.Duration

	// Admission policy file; empty uses the built-in allow-all policy.
	PolicyFile string

	// Logging
	LogLevel  string
	LogFormat string

	MetricsEnabled bool

	// gops diagnostics listen address; empty disables it.
	GopsAddr string
}

// AgentConfig holds the configuration of an agent process.
type AgentConfig struct {
	AgentID           string
	Name              string
	Description       string
	Port              int
	Endpoint          string
	Capabilities      []string
	MCPURL            string
	HeartbeatInterval time.Duration

	LogLevel  string
	LogFormat string

	GopsAddr string
}

// Load loads the coordinator configuration.
func Load() (*Config, error) {
	v, err := newValues()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		HTTPPort:          v.getEnvInt("HTTP_PORT", 8080),
		DatabaseDriver:    v.getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:       v.getEnv("DATABASE_URL", "file:mcp.db?cache=shared&mode=rwc"),
		DispatchTimeout:   time.Duration(v.getEnvInt("DISPATCH_TIMEOUT_MS", 30000)) * time.Millisecond,
		SchedulerInterval: time.Duration(v.getEnvInt("SCHEDULER_INTERVAL_MS", 0)) * time.Millisecond,
		PolicyFile:        v.getEnv("POLICY_FILE", ""),
		LogLevel:          v.getEnv("LOG_LEVEL", "info"),
		LogFormat:         v.getEnv("LOG_FORMAT", "text"),
		MetricsEnabled:    v.getEnvBool("METRICS_ENABLED", true),
		GopsAddr:          v.getEnv("GOPS_ADDR", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the coordinator configuration.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT %d is out of range", c.HTTPPort)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT_MS must be positive")
	}
	if c.SchedulerInterval < 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL_MS must not be negative")
	}
	return nil
}

// LoadAgent loads an agent's configuration. defaults supplies the agent's own
// identity when the environment does not.
func LoadAgent(defaults AgentConfig) (*AgentConfig, error) {
	v, err := newValues()
	if err != nil {
		return nil, err
	}
	port := defaults.Port
	if port == 0 {
		port = 5001
	}
	cfg := &AgentConfig{
		AgentID:           v.getEnv("AGENT_ID", defaults.AgentID),
		Name:              v.getEnv("AGENT_NAME", defaults.Name),
		Description:       v.getEnv("AGENT_DESCRIPTION", defaults.Description),
		Port:              v.getEnvInt("AGENT_PORT", port),
		MCPURL:            strings.TrimRight(v.getEnv("MCP_URL", "http://localhost:8080"), "/"),
		HeartbeatInterval: time.Duration(v.getEnvInt("HEARTBEAT_INTERVAL_MS", 30000)) * time.Millisecond,
		LogLevel:          v.getEnv("LOG_LEVEL", "info"),
		LogFormat:         v.getEnv("LOG_FORMAT", "text"),
		GopsAddr:          v.getEnv("GOPS_ADDR", ""),
	}
	cfg.Endpoint = v.getEnv("AGENT_ENDPOINT", fmt.Sprintf("http://localhost:%d", cfg.Port))
	cfg.Capabilities = v.getEnvList("AGENT_CAPABILITIES", defaults.Capabilities)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating agent config: %w", err)
	}
	return cfg, nil
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("AGENT_ID is required")
	}
	if c.Name == "" {
		return fmt.Errorf("AGENT_NAME is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("AGENT_PORT %d is out of range", c.Port)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL_MS must be positive")
	}
	return nil
}

// values resolves keys from the environment first, then the config file.
type values struct {
	file map[string]string
}

func newValues() (*values, error) {
	v := &values{file: map[string]string{}}
	path := os.Getenv(ConfigFileEnv)
	if path == "" {
		return v, nil
	}
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	v.file = file
	return v, nil
}

// LoadFile reads a flat YAML or TOML file into upper-cased keys.
// ${VAR} references are expanded before parsing.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}

	out := make(map[string]string, len(raw))
	for k, val := range raw {
		key := strings.ToUpper(k)
		switch x := val.(type) {
		case []any:
			parts := make([]string, 0, len(x))
			for _, p := range x {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config key %q: nested sections are not supported", k)
		default:
			out[key] = fmt.Sprint(x)
		}
	}
	return out, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (v *values) getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := v.file[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

func (v *values) getEnvInt(key string, defaultVal int) int {
	if val := v.getEnv(key, ""); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func (v *values) getEnvBool(key string, defaultVal bool) bool {
	if val := v.getEnv(key, ""); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func (v *values) getEnvList(key string, defaultVal []string) []string {
	val := v.getEnv(key, "")
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
