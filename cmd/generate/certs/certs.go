package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	outputDir  string
	validYears int
	hosts      []string
	Cmd        = &cobra.Command{
		Use:   "certs",
		Short: "Generate certificates for the QUIC listener (CA, server, client)",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}
)

func init() {
	Cmd.Flags().StringVarP(&outputDir, "output", "o", "./certs", "output directory")
	Cmd.Flags().IntVarP(&validYears, "years", "y", 10, "certificate validity in years")
	Cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1", "::1"}, "server certificate DNS names and IPs")
}

// Bundle is a generated key and certificate.
type Bundle struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "generate").Logger()
	logger.Info().Str("dir", outputDir).Int("years", validYears).Msg("generating certificates")

	files, err := Generate(validYears, hosts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for name, data := range files {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		logger.Info().Str("file", path).Msg("generated")
	}

	logger.Info().Msg("certificate generation complete")
	return nil
}

// Generate issues a CA plus a server and a client certificate signed by it,
// keyed by PEM file name.
func Generate(validYears int, hosts []string) (map[string][]byte, error) {
	ca, err := GenerateCA(validYears)
	if err != nil {
		return nil, fmt.Errorf("generate CA: %w", err)
	}
	srv, err := GenerateServerCert(ca, validYears, hosts)
	if err != nil {
		return nil, fmt.Errorf("generate server cert: %w", err)
	}
	cli, err := GenerateClientCert(ca, validYears)
	if err != nil {
		return nil, fmt.Errorf("generate client cert: %w", err)
	}

	files := make(map[string][]byte, 6)
	for name, b := range map[string]*Bundle{"ca": ca, "server": srv, "client": cli} {
		key, err := EncodePrivateKey(b.Key)
		if err != nil {
			return nil, err
		}
		files[name+".key"] = key
		files[name+".crt"] = EncodeCertificate(b.Cert)
	}
	return files, nil
}

// GenerateCA generates a self-signed CA.
func GenerateCA(validYears int) (*Bundle, error) {
	return issue(&x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"ProtoBridge CA"},
			CommonName:   "ProtoBridge Root CA",
		},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}, nil, validYears)
}

// GenerateServerCert generates a server certificate for hosts.
func GenerateServerCert(ca *Bundle, validYears int, hosts []string) (*Bundle, error) {
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"ProtoBridge"},
			CommonName:   "ProtoBridge Proxy",
		},
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	return issue(template, ca, validYears)
}

// GenerateClientCert generates a client certificate for mutual TLS.
func GenerateClientCert(ca *Bundle, validYears int) (*Bundle, error) {
	return issue(&x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"ProtoBridge"},
			CommonName:   "ProtoBridge Client",
		},
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}, ca, validYears)
}

// issue signs template with parent, or self-signs it when parent is nil.
func issue(template *x509.Certificate, parent *Bundle, validYears int) (*Bundle, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	template.SerialNumber = serialNumber
	template.NotBefore = time.Now().Add(-time.Minute)
	template.NotAfter = time.Now().AddDate(validYears, 0, 0)

	signer, signerKey := template, crypto.Signer(key)
	if parent != nil {
		signer, signerKey = parent.Cert, parent.Key
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, signer, &key.PublicKey, signerKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &Bundle{Key: key, Cert: cert}, nil
}

// EncodePrivateKey encodes a private key to PEM format
func EncodePrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// EncodeCertificate encodes a certificate to PEM format
func EncodeCertificate(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}
