// Package config provides the kernel's configuration surface: a Config
// interface with a YAML file implementation for deployments and an in-memory
// implementation for tests.
package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by lookups that matched nothing.
var ErrNotFound = errors.New("not found")

// Config is the read surface consumed by the bridge, the data backend and
// the binaries.
type Config interface {
	// Core server settings.
	ListenAddr() (string, error)
	ServerName() (string, error)
	ServerVersion() (string, error)
	LogLevel() (string, error)

	// Bridge limits.
	ThrottlingRPS() (int, error)
	ThrottlingRPM() (int, error)
	MaxMessageSize() (int, error)

	// SSL settings.
	SSLEnabled() (bool, error)
	SSLMode() (string, error)          // "manual" or "acme"
	SSLCertFile() (string, error)      // manual mode certificate path
	SSLKeyFile() (string, error)       // manual mode key path
	SSLAcmeDomains() ([]string, error) // domains for ACME
	SSLAcmeEmail() (string, error)     // contact email for ACME
	SSLAcmeCacheDir() (string, error)  // certificate cache directory

	// Users & auth.
	GetUserIDByKeyHash(keyHash string) (string, error)

	// Backend wiring.
	DataDriver() (string, error) // "sqlite" or "postgres"
	DataDSN() (string, error)
	DefinitionsPath() (string, error) // wizard/dialog YAML document

	// Lifecycle & status.
	Status(ctx context.Context) error
	Close() error
}

// HashAPIKey converts a plaintext API key to its SHA-256 hex representation.
// Config stores hashes only; plaintext keys never leave the client.
func HashAPIKey(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
