package certs

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

func TestEnsureCertificates_GeneratesWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	pair, err := EnsureCertificates(dir, 0, logger)
	if err != nil {
		t.Fatalf("EnsureCertificates() error = %v", err)
	}

	certBytes, err := os.ReadFile(pair.CertPath)
	if err != nil {
		t.Fatalf("failed to read cert: %v", err)
	}
	keyBytes, err := os.ReadFile(pair.KeyPath)
	if err != nil {
		t.Fatalf("failed to read key: %v", err)
	}

	block, _ := pem.Decode(certBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("cert file is not a PEM certificate block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	if cert.Subject.CommonName != "*.lan" {
		t.Errorf("CommonName = %q, want %q", cert.Subject.CommonName, "*.lan")
	}

	wantSANs := map[string]bool{"*.lan": true, "localhost": true}
	for _, san := range cert.DNSNames {
		delete(wantSANs, san)
	}
	if len(wantSANs) != 0 {
		t.Errorf("missing SANs: %v", wantSANs)
	}

	if cert.NotAfter.Sub(cert.NotBefore) < 364*24*time.Hour {
		t.Errorf("validity period = %v, want >= 365 days", cert.NotAfter.Sub(cert.NotBefore))
	}

	keyBlock, _ := pem.Decode(keyBytes)
	if keyBlock == nil {
		t.Fatal("key file is not valid PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	if key.N.BitLen() < 2048 {
		t.Errorf("key size = %d bits, want >= 2048", key.N.BitLen())
	}

	info, err := os.Stat(pair.KeyPath)
	if err != nil {
		t.Fatalf("failed to stat key file: %v", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Errorf("key file permissions = %v, want no group/other access", info.Mode().Perm())
	}
}

func TestEnsureCertificates_HonorsExplicitValidityDays(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	pair, err := EnsureCertificates(dir, 30, logger)
	if err != nil {
		t.Fatalf("EnsureCertificates() error = %v", err)
	}

	certBytes, err := os.ReadFile(pair.CertPath)
	if err != nil {
		t.Fatalf("failed to read cert: %v", err)
	}
	block, _ := pem.Decode(certBytes)
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	got := cert.NotAfter.Sub(cert.NotBefore)
	if got < 29*24*time.Hour || got > 31*24*time.Hour {
		t.Errorf("validity period = %v, want ~30 days", got)
	}
}

func TestEnsureCertificates_DoesNotOverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	if _, err := EnsureCertificates(dir, 0, logger); err != nil {
		t.Fatalf("first EnsureCertificates() error = %v", err)
	}

	certPath := filepath.Join(dir, CertFileName)
	original, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("failed to read cert: %v", err)
	}

	if _, err := EnsureCertificates(dir, 0, logger); err != nil {
		t.Fatalf("second EnsureCertificates() error = %v", err)
	}

	after, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("failed to read cert after second call: %v", err)
	}

	if string(original) != string(after) {
		t.Error("EnsureCertificates() overwrote an existing certificate")
	}
}
