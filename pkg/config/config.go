package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the cartsync agent configuration, loaded from a TOML file.
type Config struct {
	// APIBaseURL is the Stream Cart REST backend, e.g. "https://api.streamcart.example".
	APIBaseURL string `toml:"api_base_url"`
	// HubBaseURL is the push hub endpoint, e.g. "wss://hub.streamcart.example".
	HubBaseURL string `toml:"hub_base_url"`
	// ListenAddr is the local address the agent API listens on.
	ListenAddr string `toml:"listen_addr"`
	// CredentialFile is the path of the bearer-token file shared with the
	// login flow. Empty selects the default under the user config dir.
	CredentialFile string `toml:"credential_file"`
	// StorageDir holds the local snapshot cache database.
	StorageDir string `toml:"storage_dir"`
	// DebounceWindow is the quiet period before a coalesced authoritative
	// refetch fires.
	DebounceWindow Duration `toml:"debounce_window"`
	// ReconnectBackoff / ReconnectMaxBackoff bound the hub reconnect delay
	// for established connections that drop.
	ReconnectBackoff    Duration `toml:"reconnect_backoff"`
	ReconnectMaxBackoff Duration `toml:"reconnect_max_backoff"`
}

// Duration wraps time.Duration for TOML round-tripping ("900ms", "1s", ...).
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

const (
	DefaultDebounceWindow      = 900 * time.Millisecond
	DefaultReconnectBackoff    = 1 * time.Second
	DefaultReconnectMaxBackoff = 30 * time.Second
	DefaultListenAddr          = "127.0.0.1:8723"
)

const configTemplate = `# cartsync agent configuration

# Stream Cart REST backend base URL.
api_base_url = "https://api.streamcart.example"

# Push hub base URL (websocket).
hub_base_url = "wss://hub.streamcart.example"

# Local API listen address for UI consumers.
listen_addr = "127.0.0.1:8723"

# Quiet period before a coalesced authoritative refetch fires.
debounce_window = "900ms"

# Hub reconnect backoff bounds for established connections that drop.
reconnect_backoff = "1s"
reconnect_max_backoff = "30s"
`

// GetDefaultConfig returns a Config with every field at its default.
func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	credFile, err := GetDefaultCredentialPath()
	if err != nil {
		return nil, fmt.Errorf("getting default credential path: %w", err)
	}
	return &Config{
		ListenAddr:          DefaultListenAddr,
		CredentialFile:      credFile,
		StorageDir:          storageDir,
		DebounceWindow:      Duration{DefaultDebounceWindow},
		ReconnectBackoff:    Duration{DefaultReconnectBackoff},
		ReconnectMaxBackoff: Duration{DefaultReconnectMaxBackoff},
	}, nil
}

// LoadConfig reads configPath, filling unset fields with defaults. A missing
// file yields the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}
	if config.CredentialFile == "" {
		credFile, err := GetDefaultCredentialPath()
		if err != nil {
			return nil, fmt.Errorf("getting default credential path: %w", err)
		}
		config.CredentialFile = credFile
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.DebounceWindow.Duration == 0 {
		config.DebounceWindow = Duration{DefaultDebounceWindow}
	}
	if config.ReconnectBackoff.Duration == 0 {
		config.ReconnectBackoff = Duration{DefaultReconnectBackoff}
	}
	if config.ReconnectMaxBackoff.Duration == 0 {
		config.ReconnectMaxBackoff = Duration{DefaultReconnectMaxBackoff}
	}

	return &config, nil
}

// SaveConfig writes the config to configPath, creating parent directories.
func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes a commented sample config to configPath.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(configPath, []byte(configTemplate), 0644)
}

// GetDefaultStorageDir returns the default snapshot cache directory,
// honoring XDG_DATA_HOME.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "cartsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns the cartsync configuration directory, honoring
// XDG_CONFIG_HOME.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "cartsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// GetDefaultCredentialPath returns the default bearer-token file path.
func GetDefaultCredentialPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credential"), nil
}
