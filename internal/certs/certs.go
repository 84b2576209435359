// Package certs provisions the self-signed TLS certificate the host uses
// for its LAN-facing services. It never rotates an existing pair; rotation
// is an operator decision made by deleting the files.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/local-ai-packaged/orchestrator/internal/fsutil"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

const (
	CertFileName = "local-cert.pem"
	KeyFileName  = "local-key.pem"

	rsaKeyBits = 2048

	// DefaultValidityDays is used when the caller does not override it.
	DefaultValidityDays = 365

	certPermissions = 0o644
	keyPermissions  = 0o600
)

// Pair is the pair of paths produced by EnsureCertificates.
type Pair struct {
	CertPath string
	KeyPath  string
}

// EnsureCertificates returns the existing certificate pair in certDir if
// both files are present, or generates and writes a new self-signed pair
// otherwise, creating certDir if needed. It never overwrites an existing pair.
func EnsureCertificates(certDir string, validityDays int, logger *logging.Logger) (Pair, error) {
	pair := Pair{
		CertPath: filepath.Join(certDir, CertFileName),
		KeyPath:  filepath.Join(certDir, KeyFileName),
	}

	if bothExist(pair) {
		logger.Debug("certs.present", "certificate pair already present", map[string]interface{}{
			"cert_path": pair.CertPath,
		})
		return pair, nil
	}

	if validityDays <= 0 {
		validityDays = DefaultValidityDays
	}

	logger.Info("certs.generate.start", "generating self-signed certificate", map[string]interface{}{
		"cert_dir":      certDir,
		"validity_days": validityDays,
	})

	certPEM, keyPEM, err := generateSelfSigned(time.Duration(validityDays) * 24 * time.Hour)
	if err != nil {
		return Pair{}, fmt.Errorf("certs: generate: %w", err)
	}

	if err := fsutil.EnsureDir(certDir); err != nil {
		return Pair{}, fmt.Errorf("certs: %w", err)
	}
	if err := os.WriteFile(pair.CertPath, certPEM, certPermissions); err != nil {
		return Pair{}, fmt.Errorf("certs: write %s: %w", pair.CertPath, err)
	}
	if err := os.WriteFile(pair.KeyPath, keyPEM, keyPermissions); err != nil {
		return Pair{}, fmt.Errorf("certs: write %s: %w", pair.KeyPath, err)
	}

	logger.Info("certs.generate.done", "wrote new certificate pair", map[string]interface{}{
		"cert_path": pair.CertPath,
		"key_path":  pair.KeyPath,
	})

	return pair, nil
}

func bothExist(pair Pair) bool {
	if _, err := os.Stat(pair.CertPath); err != nil {
		return false
	}
	if _, err := os.Stat(pair.KeyPath); err != nil {
		return false
	}
	return true
}

func generateSelfSigned(validFor time.Duration) (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "*.lan",
		},
		DNSNames:              []string{"*.lan", "localhost"},
		NotBefore:             now,
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	return certPEM, keyPEM, nil
}
