// Package config provides node configuration loaded from environment variables.
package config

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds portal-node configuration.
type Config struct {
	// NATS request/reply surface and peer events.
	NATSURL          string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	NATSEnabled      bool   `envconfig:"NATS_ENABLED" default:"false"`
	ServiceName      string `envconfig:"SERVICE_NAME" default:"portal-node"`
	RPCSubject       string `envconfig:"RPC_SUBJECT" default:"portal.jsonrpc"`
	PeerEventSubject string `envconfig:"PEER_EVENT_SUBJECT" default:"portal.peers.discovered"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`

	// Database. Empty keeps peers in memory.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// Bootnodes file; empty tries config/bootstrap.json then bootstrap.json.
	BootstrapFile string `envconfig:"BOOTSTRAP_FILE"`

	// HTTP JSON-RPC and health endpoints (HTTP_ADDR preferred, e.g. "0.0.0.0:8545")
	HTTPAddr           string        `envconfig:"HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8545"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	// Comma separated; "*" allows any origin, empty disables CORS.
	HTTPCORSOrigins []string `envconfig:"HTTP_CORS_ORIGINS" default:"*"`

	RPCRateLimit   float64 `envconfig:"RPC_RATE_LIMIT" default:"100"`
	RPCRateBurst   int     `envconfig:"RPC_RATE_BURST" default:"200"`
	WorkerPoolSize int     `envconfig:"WORKER_POOL_SIZE" default:"64"`

	// Local node record. An empty NODE_KEY generates an ephemeral key.
	NodeKey     string `envconfig:"NODE_KEY"`
	NodeIP      string `envconfig:"NODE_IP" default:"127.0.0.1"`
	NodeUDPPort int    `envconfig:"NODE_UDP_PORT" default:"9009"`
	DataRadius  string `envconfig:"DATA_RADIUS" default:"0x0"`

	ClientVersion string `envconfig:"CLIENT_VERSION" default:"0.1.0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the node.
func (c *Config) ValidateForServe() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.NATSEnabled && c.RPCSubject == "" {
		return fmt.Errorf("%s - RPC_SUBJECT is required when NATS_ENABLED", logPrefix)
	}
	if c.RPCRateLimit <= 0 || c.RPCRateBurst <= 0 {
		return fmt.Errorf("%s - RPC_RATE_LIMIT and RPC_RATE_BURST must be positive", logPrefix)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("%s - WORKER_POOL_SIZE must be positive", logPrefix)
	}
	if c.NodeUDPPort <= 0 || c.NodeUDPPort > 65535 {
		return fmt.Errorf("%s - NODE_UDP_PORT %d out of range", logPrefix, c.NodeUDPPort)
	}
	if net.ParseIP(c.NodeIP) == nil {
		return fmt.Errorf("%s - NODE_IP %q is not an IP address", logPrefix, c.NodeIP)
	}
	if _, err := c.Version(); err != nil {
		return err
	}
	if _, err := c.Radius(); err != nil {
		return err
	}
	if _, err := c.PrivateKey(); err != nil {
		return err
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// Version parses CLIENT_VERSION as strict semver.
func (c *Config) Version() (*semver.Version, error) {
	v, err := semver.StrictNewVersion(c.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("%s - CLIENT_VERSION %q: %w", logPrefix, c.ClientVersion, err)
	}
	return v, nil
}

// Radius parses DATA_RADIUS, a 0x-prefixed hex integer of at most 256 bits.
func (c *Config) Radius() (*big.Int, error) {
	r, err := hexutil.DecodeBig(c.DataRadius)
	if err != nil {
		return nil, fmt.Errorf("%s - DATA_RADIUS %q: %w", logPrefix, c.DataRadius, err)
	}
	return r, nil
}

// PrivateKey decodes NODE_KEY (hex, optional 0x prefix). It returns nil, nil
// when no key is configured.
func (c *Config) PrivateKey() (*ecdsa.PrivateKey, error) {
	if c.NodeKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.NodeKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s - NODE_KEY: %w", logPrefix, err)
	}
	return key, nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}
