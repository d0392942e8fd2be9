// Copyright 2025 TradeFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the platform configuration file, following the
// Kubernetes-style apiVersion/kind pattern.
type ConfigFile struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   ConfigMetadata `yaml:"metadata"`
	Spec       ConfigSpec     `yaml:"spec"`
}

// ConfigMetadata identifies a configuration.
type ConfigMetadata struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Description string `yaml:"description"`
}

// ConfigSpec holds the platform settings.
type ConfigSpec struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           int `yaml:"port"`
	ReadTimeoutSec int `yaml:"read_timeout_seconds"`
	IdleTimeoutSec int `yaml:"idle_timeout_seconds"`
}

// StorageConfig configures execution and audit persistence. Empty URLs
// select the in-memory store and the no-op audit logger.
type StorageConfig struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

// LLMConfig configures the regulatory reporting model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_seconds"`
}

// AuthConfig configures optional bearer-token authentication. An empty
// secret disables auth entirely.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// PipelineConfig bounds pipeline execution.
type PipelineConfig struct {
	ExecutionTimeoutSec int `yaml:"execution_timeout_seconds"`
}

const (
	DefaultServerPort          = 8081
	DefaultReadTimeoutSec      = 30
	DefaultIdleTimeoutSec      = 120
	DefaultExecutionTimeoutSec = 300
	DefaultTokenTTLHours       = 24
)

// LoadConfig loads a configuration file, applies defaults, then overlays
// environment variables. An empty path yields an env-only configuration.
func LoadConfig(path string) (*ConfigFile, error) {
	config := &ConfigFile{
		APIVersion: "tradeflow.io/v1",
		Kind:       "PlatformConfig",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return config, nil
}

func (c *ConfigFile) applyDefaults() {
	if c.Spec.Server.Port == 0 {
		c.Spec.Server.Port = DefaultServerPort
	}
	if c.Spec.Server.ReadTimeoutSec == 0 {
		c.Spec.Server.ReadTimeoutSec = DefaultReadTimeoutSec
	}
	if c.Spec.Server.IdleTimeoutSec == 0 {
		c.Spec.Server.IdleTimeoutSec = DefaultIdleTimeoutSec
	}
	if c.Spec.Pipeline.ExecutionTimeoutSec == 0 {
		c.Spec.Pipeline.ExecutionTimeoutSec = DefaultExecutionTimeoutSec
	}
	if c.Spec.Auth.TokenTTLHours == 0 {
		c.Spec.Auth.TokenTTLHours = DefaultTokenTTLHours
	}
	if c.Spec.LLM.Provider == "" {
		c.Spec.LLM.Provider = "gemini"
	}
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the file.
func (c *ConfigFile) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Spec.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Spec.Storage.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Spec.Storage.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Spec.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Spec.LLM.Model = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Spec.Auth.JWTSecret = v
	}
}

// ValidateConfig validates a platform configuration.
func ValidateConfig(config *ConfigFile) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if config.APIVersion != "" && config.APIVersion != "tradeflow.io/v1" {
		return fmt.Errorf("invalid apiVersion: expected 'tradeflow.io/v1', got '%s'", config.APIVersion)
	}
	if config.Kind != "" && config.Kind != "PlatformConfig" {
		return fmt.Errorf("invalid kind: expected 'PlatformConfig', got '%s'", config.Kind)
	}

	if config.Spec.Server.Port < 1 || config.Spec.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Spec.Server.Port)
	}
	if config.Spec.Server.ReadTimeoutSec < 0 || config.Spec.Server.IdleTimeoutSec < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}
	if config.Spec.Pipeline.ExecutionTimeoutSec < 0 {
		return fmt.Errorf("execution_timeout_seconds cannot be negative")
	}
	if config.Spec.LLM.Temperature < 0 || config.Spec.LLM.Temperature > 2.0 {
		return fmt.Errorf("llm temperature must be between 0 and 2.0")
	}

	return nil
}

// ExecutionTimeout returns the configured pipeline timeout.
func (c *PipelineConfig) ExecutionTimeout() time.Duration {
	if c.ExecutionTimeoutSec <= 0 {
		return time.Duration(DefaultExecutionTimeoutSec) * time.Second
	}
	return time.Duration(c.ExecutionTimeoutSec) * time.Second
}

// LLMEnabled reports whether a model-driven regulatory agent can be built
// from this configuration.
func (c *ConfigFile) LLMEnabled() bool {
	return c.Spec.LLM.APIKey != ""
}

// AuthEnabled reports whether bearer-token auth is configured.
func (c *ConfigFile) AuthEnabled() bool {
	return c.Spec.Auth.JWTSecret != ""
}

// getEnv returns the environment variable value or a fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
