package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gatewaycfg "microlend/gateway/config"
	"microlend/network"
	"microlend/observability/logging"
)

const (
	defaultListen          = ":50053"
	defaultNodeConfig      = "./config.toml"
	defaultRateLimitPerMin = 120
	defaultCallerSkew      = 2 * time.Minute
	defaultNoncePrune      = time.Minute
)

// Environment overrides applied after the YAML document is decoded.
const (
	EnvListen           = "LENDINGD_LISTEN"
	EnvNodeConfig       = "LENDINGD_NODE_CONFIG"
	EnvTLSCert          = "LENDINGD_TLS_CERT"
	EnvTLSKey           = "LENDINGD_TLS_KEY"
	EnvTLSClientCA      = "LENDINGD_TLS_CLIENT_CA"
	EnvTLSAllowInsecure = "LENDINGD_TLS_ALLOW_INSECURE"
	EnvAPITokens        = "LENDINGD_API_TOKENS"
	EnvAllowedCNs       = "LENDINGD_ALLOWED_CNS"
	EnvRateLimitPerMin  = "LENDINGD_RATE_PER_MIN"
	EnvIndexerDSN       = "LENDINGD_INDEXER_DSN"
	EnvGatewayListen    = "LENDINGD_GATEWAY_LISTEN"
	EnvGatewaySecret    = "LENDINGD_GATEWAY_HMAC_SECRET"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress string `yaml:"listen"`
	// NodeConfig points at the TOML document describing storage, genesis
	// and lending parameters.
	NodeConfig      string        `yaml:"node_config"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	TLS             TLSConfig     `yaml:"tls"`
	Auth            AuthConfig    `yaml:"auth"`
	Caller          CallerConfig  `yaml:"caller"`
	Indexer         IndexerConfig `yaml:"indexer"`
	Gateway         GatewayConfig `yaml:"gateway"`
}

// TLSConfig describes the TLS material for the gRPC server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	ClientCAPath  string `yaml:"client_ca"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the authenticators accepted by the service.
type AuthConfig struct {
	APITokens []string       `yaml:"api_tokens"`
	MTLS      MTLSAuthConfig `yaml:"mtls"`
}

// MTLSAuthConfig enumerates the allowed client certificate identities.
type MTLSAuthConfig struct {
	AllowedCommonNames []string `yaml:"allowed_common_names"`
}

// CallerConfig tunes how mutating calls prove their caller.
type CallerConfig struct {
	RequireSignature *bool         `yaml:"require_signature"`
	MaxSkew          time.Duration `yaml:"max_skew"`
	// NonceStore enables the durable replay guard when set.
	NonceStore string        `yaml:"nonce_store"`
	PruneEvery time.Duration `yaml:"prune_every"`
}

// IndexerConfig enables the SQL event index. An empty DSN disables it.
type IndexerConfig struct {
	DSN string `yaml:"dsn"`
}

// GatewayConfig embeds the HTTP gateway document.
type GatewayConfig struct {
	Enabled           bool `yaml:"enabled"`
	gatewaycfg.Config `yaml:",inline"`
}

// Load reads the YAML configuration from disk, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RequireSignedCaller reports whether unsigned caller envelopes are refused.
// Signatures are required unless explicitly turned off.
func (cfg Config) RequireSignedCaller() bool {
	if cfg.Caller.RequireSignature == nil {
		return true
	}
	return *cfg.Caller.RequireSignature
}

// NetworkTLS converts the TLS section for network.BuildServerSecurity.
func (cfg Config) NetworkTLS() network.TLSConfig {
	return network.TLSConfig{
		CertPath:           cfg.TLS.CertPath,
		KeyPath:            cfg.TLS.KeyPath,
		ClientCAPath:       cfg.TLS.ClientCAPath,
		AllowInsecure:      cfg.TLS.AllowInsecure,
		AllowedClientNames: cfg.Auth.MTLS.AllowedCommonNames,
	}
}

// Sanitized returns a copy safe to log.
func (cfg Config) Sanitized() Config {
	clone := cfg
	clone.Auth.APITokens = logging.MaskSecrets(cfg.Auth.APITokens)
	clone.Gateway.Auth.HMACSecret = logging.MaskSecret(cfg.Gateway.Auth.HMACSecret)
	return clone
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}
	if v, ok := get(EnvListen); ok {
		cfg.ListenAddress = v
	}
	if v, ok := get(EnvNodeConfig); ok {
		cfg.NodeConfig = v
	}
	if v, ok := get(EnvTLSCert); ok {
		cfg.TLS.CertPath = v
	}
	if v, ok := get(EnvTLSKey); ok {
		cfg.TLS.KeyPath = v
	}
	if v, ok := get(EnvTLSClientCA); ok {
		cfg.TLS.ClientCAPath = v
	}
	if v, ok := get(EnvTLSAllowInsecure); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.TLS.AllowInsecure = parsed
		}
	}
	if v, ok := get(EnvAPITokens); ok {
		cfg.Auth.APITokens = strings.Split(v, ",")
	}
	if v, ok := get(EnvAllowedCNs); ok {
		cfg.Auth.MTLS.AllowedCommonNames = strings.Split(v, ",")
	}
	if v, ok := get(EnvRateLimitPerMin); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMin = parsed
		}
	}
	if v, ok := get(EnvIndexerDSN); ok {
		cfg.Indexer.DSN = v
	}
	if v, ok := get(EnvGatewayListen); ok {
		cfg.Gateway.ListenAddress = v
	}
	if v, ok := get(EnvGatewaySecret); ok {
		cfg.Gateway.Auth.HMACSecret = v
	}
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.NodeConfig = strings.TrimSpace(cfg.NodeConfig)
	if cfg.NodeConfig == "" {
		cfg.NodeConfig = defaultNodeConfig
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = defaultRateLimitPerMin
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	if cfg.Caller.MaxSkew <= 0 {
		cfg.Caller.MaxSkew = defaultCallerSkew
	}
	cfg.Caller.NonceStore = strings.TrimSpace(cfg.Caller.NonceStore)
	if cfg.Caller.PruneEvery <= 0 {
		cfg.Caller.PruneEvery = defaultNoncePrune
	}
	cfg.Indexer.DSN = strings.TrimSpace(cfg.Indexer.DSN)
	if cfg.Gateway.Enabled {
		cfg.Gateway.ApplyDefaults()
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.RateLimitPerMin < 0 {
		return fmt.Errorf("rate_limit_per_min must be non-negative")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(cfg.TLS); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.Gateway.Enabled {
		if err := cfg.Gateway.Validate(); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		if cfg.Gateway.Auth.Enabled && strings.TrimSpace(cfg.Gateway.Auth.HMACSecret) == "" {
			return fmt.Errorf("gateway: auth.hmacSecret required when auth is enabled")
		}
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.ClientCAPath = strings.TrimSpace(cfg.ClientCAPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	if cfg.ClientCAPath != "" && !hasCert {
		return fmt.Errorf("client_ca requires a server certificate and key")
	}
	return nil
}

// MTLSEnabled reports whether mutual TLS verification is configured.
func (cfg TLSConfig) MTLSEnabled() bool {
	return strings.TrimSpace(cfg.ClientCAPath) != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.APITokens = trimAll(cfg.APITokens)
	cfg.MTLS.AllowedCommonNames = trimAll(cfg.MTLS.AllowedCommonNames)
}

// validate requires an operator credential outside plaintext development
// setups; without one the admin RPCs stay unreachable.
func (cfg AuthConfig) validate(tls TLSConfig) error {
	hasTokens := len(cfg.APITokens) > 0
	hasMTLS := len(cfg.MTLS.AllowedCommonNames) > 0
	if !hasTokens && !hasMTLS && !tls.AllowInsecure {
		return fmt.Errorf("at least one api token or mTLS common name must be configured")
	}
	if hasMTLS && strings.TrimSpace(tls.ClientCAPath) == "" {
		return fmt.Errorf("mtls.allowed_common_names requires tls.client_ca to be configured")
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
