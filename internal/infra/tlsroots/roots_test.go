package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	pool, err := NewPool()
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	if pool.Pool() == nil {
		t.Fatal("Pool() returned nil")
	}
}

func TestAddCertPEM(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid certificate", generateTestCertPEM(t), nil},
		{"empty", nil, ErrNoCertsFound},
		{"not pem", []byte("hello"), ErrNoCertsFound},
		{"private key only", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}}), ErrNoCertsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEmptyPool().AddCertPEM(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddCertPEM() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
	if err := NewEmptyPool().AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() should fail on a malformed certificate")
	}
}

func TestAddCertFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(path, generateTestCertPEM(t), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := NewEmptyPool().AddCertFile(path); err != nil {
		t.Errorf("AddCertFile() error = %v", err)
	}
	if err := NewEmptyPool().AddCertFile(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("AddCertFile() should fail for a missing file")
	}
}

func TestAddCertDir(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.pem"), generateTestCertPEM(t), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "b.CRT"), generateTestCertPEM(t), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "broken.cer"), []byte("nope"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600)

	skipped, err := NewEmptyPool().AddCertDir(dir)
	if err != nil {
		t.Fatalf("AddCertDir() error = %v", err)
	}
	if len(skipped) != 1 || skipped[0] != "broken.cer" {
		t.Errorf("skipped = %v, want [broken.cer]", skipped)
	}
}

func TestClientConfig(t *testing.T) {
	cfg, err := ClientConfig("")
	if err != nil || cfg != nil {
		t.Errorf("ClientConfig(\"\") = %v, %v; want nil, nil", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "ca.pem")
	_ = os.WriteFile(path, generateTestCertPEM(t), 0o600)

	cfg, err = ClientConfig(path)
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.RootCAs == nil || cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("unexpected tls config: %+v", cfg)
	}
}

func generateTestCertPEM(t *testing.T) []byte {
	t.Helper()

	cert := generateTestCert(t)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}

func generateTestCert(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Wallet Auth Test"},
			CommonName:   "backend.test",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return cert
}
