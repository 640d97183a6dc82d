package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	EnvPrefix = "PROTOBRIDGE_"
)

// GetenvDefault returns the environment variable key, or defaultValue when it is unset or empty.
func GetenvDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Quic holds the transport tunables of the QUIC listener.
type Quic struct {
	InitialStreamReceiveWindow     uint64        `yaml:"initial_stream_receive_window"`
	MaxStreamReceiveWindow         uint64        `yaml:"max_stream_receive_window"`
	InitialConnectionReceiveWindow uint64        `yaml:"initial_connection_receive_window"`
	MaxConnectionReceiveWindow     uint64        `yaml:"max_connection_receive_window"`
	MaxIncomingStreams             int64         `yaml:"max_incoming_streams"`
	KeepAlivePeriod                time.Duration `yaml:"keep_alive_period"`
	HandshakeIdleTimeout           time.Duration `yaml:"handshake_idle_timeout"`
	MaxIdleTimeout                 time.Duration `yaml:"max_idle_timeout"`
}

func (q Quic) GetConfig() *quic.Config {
	if q.MaxIdleTimeout == 0 {
		q.MaxIdleTimeout = DefaultMaxIdleTimeout
	}
	return &quic.Config{
		InitialStreamReceiveWindow:     q.InitialStreamReceiveWindow,
		MaxStreamReceiveWindow:         q.MaxStreamReceiveWindow,
		InitialConnectionReceiveWindow: q.InitialConnectionReceiveWindow,
		MaxConnectionReceiveWindow:     q.MaxConnectionReceiveWindow,
		MaxIncomingStreams:             q.MaxIncomingStreams,
		KeepAlivePeriod:                q.KeepAlivePeriod,
		HandshakeIdleTimeout:           q.HandshakeIdleTimeout,
		MaxIdleTimeout:                 q.MaxIdleTimeout,
	}
}

// TLS is the certificate of the QUIC listener, plus an optional CA that
// client certificates must chain to.
type TLS struct {
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	ClientCAFile string `yaml:"client_ca_file"`

	SessionTicketKeyRotationInterval time.Duration `yaml:"session_ticket_key_rotation_interval"`
	SessionTicketKeyRotationOverlap  uint8         `yaml:"session_ticket_key_rotation_overlap"`

	// Loaded certificates (not from YAML)
	Cert      tls.Certificate `yaml:"-"`
	ClientCAs *x509.CertPool  `yaml:"-"`
}

// LoadCertificates loads TLS certificates from files
func (t *TLS) LoadCertificates() error {
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return fmt.Errorf("load cert/key: %w", err)
	}
	t.Cert = cert

	if t.ClientCAFile == "" {
		return nil
	}
	caCertPEM, err := os.ReadFile(t.ClientCAFile)
	if err != nil {
		return fmt.Errorf("read client CA cert: %w", err)
	}
	t.ClientCAs = x509.NewCertPool()
	if !t.ClientCAs.AppendCertsFromPEM(caCertPEM) {
		return fmt.Errorf("failed to parse client CA certificate")
	}
	return nil
}

// Config returns the server TLS configuration of the loaded certificates.
func (t *TLS) Config() *tls.Config {
	conf := &tls.Config{
		Certificates: []tls.Certificate{t.Cert},
		NextProtos:   []string{ALPN},
	}
	if t.ClientCAs != nil {
		conf.ClientAuth = tls.RequireAndVerifyClientCert
		conf.ClientCAs = t.ClientCAs
	}
	return conf
}

// ValidateAddress validates that an address is in valid host:port format.
// Listen addresses may omit the host and use port 0.
func ValidateAddress(addr string, listen bool) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format %q: %w", addr, err)
	}

	if host == "" && !listen {
		return fmt.Errorf("host cannot be empty in address %q", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in address %q: %w", addr, err)
	}

	minPort := 1
	if listen {
		minPort = 0
	}
	if port < minPort || port > 65535 {
		return fmt.Errorf("port must be between %d and 65535, got %d in address %q", minPort, port, addr)
	}

	return nil
}
