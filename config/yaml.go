package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultThrottlingRPS  = 10
	defaultThrottlingRPM  = 300
	defaultMaxMessageSize = 1 << 20 // 1 MiB
)

var _ Config = (*YamlConfig)(nil)

// YamlConfig implements Config with YAML file-based storage. The file can be
// reloaded at runtime (see Watch).
type YamlConfig struct {
	mu         sync.RWMutex
	configPath string
	logger     *zap.Logger

	serverAddress  string
	serverName     string
	serverVersion  string
	logLevel       string
	throttlingRPS  int
	throttlingRPM  int
	maxMessageSize int

	sslEnabled      bool
	sslMode         string
	sslCertFile     string
	sslKeyFile      string
	sslAcmeDomains  []string
	sslAcmeEmail    string
	sslAcmeCacheDir string

	userKeyHashes map[string]string // keyHash -> userID

	dataDriver      string
	dataDSN         string
	definitionsPath string

	closeWatcher func() // set by Watch
}

// yamlFile is the on-disk structure.
type yamlFile struct {
	Server struct {
		Address        string `yaml:"address"`
		Name           string `yaml:"name"`
		Version        string `yaml:"version"`
		LogLevel       string `yaml:"log_level"`
		ThrottlingRPS  int    `yaml:"throttling_rps"`
		ThrottlingRPM  int    `yaml:"throttling_rpm"`
		MaxMessageSize int    `yaml:"max_message_size"`
		SSL            struct {
			Enabled      bool     `yaml:"enabled"`
			Mode         string   `yaml:"mode"`
			CertFile     string   `yaml:"cert_file"`
			KeyFile      string   `yaml:"key_file"`
			AcmeDomains  []string `yaml:"acme_domains"`
			AcmeEmail    string   `yaml:"acme_email"`
			AcmeCacheDir string   `yaml:"acme_cache_dir"`
		} `yaml:"ssl"`
	} `yaml:"server"`

	Users map[string]struct {
		Keys []string `yaml:"keys"` // SHA-256 hashes
	} `yaml:"users"`

	Data struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"data"`

	Definitions string `yaml:"definitions"` // wizard/dialog YAML path
}

// NewYamlConfig loads configuration from a YAML file.
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	c := &YamlConfig{
		configPath:      configPath,
		logger:          logger,
		throttlingRPS:   defaultThrottlingRPS,
		throttlingRPM:   defaultThrottlingRPM,
		maxMessageSize:  defaultMaxMessageSize,
		sslMode:         "manual",
		sslAcmeCacheDir: "./.autocert-cache",
		userKeyHashes:   make(map[string]string),
		dataDriver:      "sqlite",
	}
	if err := c.Update(); err != nil {
		return nil, err
	}
	return c, nil
}

// Update re-reads the configuration file. It is called on construction and
// by the file watcher on change; a malformed file leaves the previous state
// in place and returns the parse error.
func (c *YamlConfig) Update() error {
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", c.configPath, err)
	}

	var raw yamlFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", c.configPath, err)
	}

	keyHashes := make(map[string]string)
	for userID, user := range raw.Users {
		for _, hash := range user.Keys {
			keyHashes[strings.ToLower(hash)] = userID
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.serverAddress = raw.Server.Address
	c.serverName = raw.Server.Name
	c.serverVersion = raw.Server.Version
	c.logLevel = raw.Server.LogLevel
	if raw.Server.ThrottlingRPS > 0 {
		c.throttlingRPS = raw.Server.ThrottlingRPS
	}
	if raw.Server.ThrottlingRPM > 0 {
		c.throttlingRPM = raw.Server.ThrottlingRPM
	}
	if raw.Server.MaxMessageSize > 0 {
		c.maxMessageSize = raw.Server.MaxMessageSize
	}

	c.sslEnabled = raw.Server.SSL.Enabled
	if raw.Server.SSL.Mode != "" {
		c.sslMode = raw.Server.SSL.Mode
	}
	c.sslCertFile = raw.Server.SSL.CertFile
	c.sslKeyFile = raw.Server.SSL.KeyFile
	c.sslAcmeDomains = raw.Server.SSL.AcmeDomains
	c.sslAcmeEmail = raw.Server.SSL.AcmeEmail
	if raw.Server.SSL.AcmeCacheDir != "" {
		c.sslAcmeCacheDir = raw.Server.SSL.AcmeCacheDir
	}

	c.userKeyHashes = keyHashes

	if raw.Data.Driver != "" {
		c.dataDriver = raw.Data.Driver
	}
	c.dataDSN = raw.Data.DSN
	c.definitionsPath = raw.Definitions

	c.logger.Debug("configuration loaded",
		zap.String("path", c.configPath),
		zap.Int("users", len(raw.Users)),
	)
	return nil
}

func (c *YamlConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.serverAddress == "" {
		return "", fmt.Errorf("server.address is not configured")
	}
	return c.serverAddress, nil
}

func (c *YamlConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, nil
}

func (c *YamlConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverVersion, nil
}

func (c *YamlConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel, nil
}

func (c *YamlConfig) ThrottlingRPS() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.throttlingRPS, nil
}

func (c *YamlConfig) ThrottlingRPM() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.throttlingRPM, nil
}

func (c *YamlConfig) MaxMessageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxMessageSize, nil
}

func (c *YamlConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslEnabled, nil
}

func (c *YamlConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslMode, nil
}

func (c *YamlConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslCertFile, nil
}

func (c *YamlConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslKeyFile, nil
}

func (c *YamlConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeDomains, nil
}

func (c *YamlConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeEmail, nil
}

func (c *YamlConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeCacheDir, nil
}

func (c *YamlConfig) GetUserIDByKeyHash(keyHash string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if keyHash == "" {
		return "", ErrNotFound
	}
	userID, ok := c.userKeyHashes[strings.ToLower(keyHash)]
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}

func (c *YamlConfig) DataDriver() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataDriver, nil
}

func (c *YamlConfig) DataDSN() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataDSN, nil
}

func (c *YamlConfig) DefinitionsPath() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definitionsPath, nil
}

// Status reports whether the config file is still readable.
func (c *YamlConfig) Status(ctx context.Context) error {
	c.mu.RLock()
	path := c.configPath
	c.mu.RUnlock()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file unavailable: %w", err)
	}
	return nil
}

func (c *YamlConfig) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeWatcher != nil {
		c.closeWatcher()
		c.closeWatcher = nil
	}
	return nil
}
