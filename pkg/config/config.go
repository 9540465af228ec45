// Package config loads the node's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Network NetworkConfig `yaml:"network"`
	Cluster ClusterConfig `yaml:"cluster"`
	Logging LoggingConfig `yaml:"logging"`
}

// NodeConfig contains node identity.
type NodeConfig struct {
	ID string `yaml:"id"`
}

// NetworkConfig contains the multiaddress this node binds to and an
// advertise address. AdvertiseAddr is loaded from the file but is not
// used by the node or its transport.
type NetworkConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	AdvertiseAddr string `yaml:"advertise_addr"`
}

// ClusterConfig contains the peers this node dials at startup and the
// replica set it forwards client-originated mutations to.
type ClusterConfig struct {
	Seeds       []string `yaml:"seeds"`
	ReplicaSet  []string `yaml:"replica_set"`
	PingVerbose bool     `yaml:"ping_verbose"`
}

// LoggingConfig mirrors internal/logging.LogConfig's YAML shape.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	EnableConsole bool   `yaml:"enable_console"`
	EnableFile    bool   `yaml:"enable_file"`
	LogFile       string `yaml:"log_file"`
	BufferSize    int    `yaml:"buffer_size"`
	LogDir        string `yaml:"log_dir"`
}

// Load reads and parses the configuration file at path, falling back to
// production defaults if the file does not exist.
func Load(path string) (*Config, error) {
	config := &Config{
		Node: NodeConfig{
			ID: "",
		},
		Network: NetworkConfig{
			ListenAddr:    "/ip4/0.0.0.0/tcp/7946",
			AdvertiseAddr: "",
		},
		Cluster: ClusterConfig{
			Seeds:       []string{},
			ReplicaSet:  []string{},
			PingVerbose: false,
		},
		Logging: LoggingConfig{
			Level:         "info",
			EnableConsole: true,
			EnableFile:    false,
			LogFile:       "",
			BufferSize:    1000,
			LogDir:        "logs",
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("configuration file %s not found, using defaults\n", path)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the loaded configuration for obvious misconfiguration
// before a node is built from it.
func (c *Config) Validate() error {
	if c.Network.ListenAddr == "" {
		return fmt.Errorf("network.listen_addr cannot be empty")
	}
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.BufferSize <= 0 {
		return fmt.Errorf("logging.buffer_size must be > 0")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}
