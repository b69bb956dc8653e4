package network

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// TLSConfig describes the TLS material of a server listener.
type TLSConfig struct {
	CertPath      string
	KeyPath       string
	ClientCAPath  string
	AllowInsecure bool
	// AllowedClientNames restricts client certificates to these CN/SAN
	// identities.
	AllowedClientNames []string
}

// BuildServerSecurity constructs transport credentials for a gRPC server and,
// when a client CA is configured, the authorizer enforcing the client
// identity allow list.
func BuildServerSecurity(cfg TLSConfig, baseDir string) (credentials.TransportCredentials, Authenticator, error) {
	tlsConfig, err := ServerTLSConfig(cfg, baseDir)
	if err != nil {
		return nil, nil, err
	}
	if tlsConfig == nil {
		if !cfg.AllowInsecure {
			return nil, nil, fmt.Errorf("network security configuration is missing TLS material; set allow_insecure only for development")
		}
		return insecure.NewCredentials(), nil, nil
	}
	var mtls Authenticator
	if tlsConfig.ClientCAs != nil {
		mtls = NewTLSAuthorizer(cfg.AllowedClientNames)
	}
	return credentials.NewTLS(tlsConfig), mtls, nil
}

// ServerTLSConfig loads the key pair and optional client CA. A nil config is
// returned when no certificate is configured.
func ServerTLSConfig(cfg TLSConfig, baseDir string) (*tls.Config, error) {
	certPath := resolveSecurityPath(baseDir, cfg.CertPath)
	keyPath := resolveSecurityPath(baseDir, cfg.KeyPath)
	caPath := resolveSecurityPath(baseDir, cfg.ClientCAPath)
	if certPath == "" && keyPath == "" {
		if caPath != "" {
			return nil, fmt.Errorf("client CA requires a server certificate and key")
		}
		return nil, nil
	}
	if certPath == "" || keyPath == "" {
		return nil, fmt.Errorf("TLS requires both a certificate and a key")
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS keypair: %w", err)
	}
	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}
	if caPath != "" {
		pool, err := loadCertPool(caPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConfig, nil
}

// ClientTLSConfig builds the TLS configuration used by clients dialing a
// server. certPath and keyPath are optional and enable mutual TLS.
func ClientTLSConfig(caPath, certPath, keyPath, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: strings.TrimSpace(serverName)}
	if strings.TrimSpace(caPath) != "" {
		pool, err := loadCertPool(caPath)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if strings.TrimSpace(certPath) != "" || strings.TrimSpace(keyPath) != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("load client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificates from %s", path)
	}
	return pool, nil
}

func resolveSecurityPath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if baseDir != "" && !filepath.IsAbs(trimmed) {
		return filepath.Join(baseDir, trimmed)
	}
	return trimmed
}
