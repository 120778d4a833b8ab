package config

import (
	"context"
	"sync"
)

var _ Config = (*InternalConfig)(nil)

// InternalConfig implements Config with in-memory storage. Tests and
// embedders set the exported fields directly.
type InternalConfig struct {
	mu sync.RWMutex

	ServerAddress       string
	ServerNameValue     string
	ServerVersionValue  string
	LogLevelValue       string
	ThrottlingRPSValue  int
	ThrottlingRPMValue  int
	MaxMessageSizeValue int

	SSLEnabledValue      bool
	SSLModeValue         string
	SSLCertFileValue     string
	SSLKeyFileValue      string
	SSLAcmeDomainsValue  []string
	SSLAcmeEmailValue    string
	SSLAcmeCacheDirValue string

	UserKeyHashes map[string]string // keyHash -> userID

	DataDriverValue      string
	DataDSNValue         string
	DefinitionsPathValue string
}

// NewInternalConfig creates an in-memory configuration with usable defaults.
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		ServerAddress:        ":4040",
		ServerNameValue:      "zkernel",
		ServerVersionValue:   "0.0.0",
		LogLevelValue:        "info",
		ThrottlingRPSValue:   defaultThrottlingRPS,
		ThrottlingRPMValue:   defaultThrottlingRPM,
		MaxMessageSizeValue:  defaultMaxMessageSize,
		SSLModeValue:         "manual",
		SSLAcmeCacheDirValue: "./.autocert-cache",
		UserKeyHashes:        make(map[string]string),
		DataDriverValue:      "sqlite",
		DataDSNValue:         ":memory:",
	}
}

func (c *InternalConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerAddress, nil
}

// SetListenAddr overrides the listen address (tests bind to :0).
func (c *InternalConfig) SetListenAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ServerAddress = addr
}

func (c *InternalConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerNameValue, nil
}

func (c *InternalConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerVersionValue, nil
}

func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) ThrottlingRPS() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ThrottlingRPSValue, nil
}

func (c *InternalConfig) ThrottlingRPM() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ThrottlingRPMValue, nil
}

func (c *InternalConfig) MaxMessageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxMessageSizeValue, nil
}

func (c *InternalConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLEnabledValue, nil
}

func (c *InternalConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLModeValue, nil
}

func (c *InternalConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLCertFileValue, nil
}

func (c *InternalConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLKeyFileValue, nil
}

func (c *InternalConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeDomainsValue, nil
}

func (c *InternalConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeEmailValue, nil
}

func (c *InternalConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeCacheDirValue, nil
}

func (c *InternalConfig) GetUserIDByKeyHash(keyHash string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if keyHash == "" {
		return "", ErrNotFound
	}
	userID, ok := c.UserKeyHashes[keyHash]
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}

// SetUserKey registers a plaintext API key for a user (hashing it first).
func (c *InternalConfig) SetUserKey(userID, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UserKeyHashes[HashAPIKey(key)] = userID
}

func (c *InternalConfig) DataDriver() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DataDriverValue, nil
}

func (c *InternalConfig) DataDSN() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DataDSNValue, nil
}

func (c *InternalConfig) DefinitionsPath() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DefinitionsPathValue, nil
}

func (c *InternalConfig) Status(ctx context.Context) error { return nil }

func (c *InternalConfig) Close() error { return nil }
