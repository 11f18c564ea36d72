package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"
)

const (
	commonName   = "estorage"
	certValidity = 28 * 24 * time.Hour
)

// ServerCertificate loads the key pair named by ESTORAGE_TLS_CERT_FILE and
// ESTORAGE_TLS_KEY_FILE, or creates a self-signed one when neither is set.
func ServerCertificate() (tls.Certificate, error) {
	certFile := strings.TrimSpace(os.Getenv("ESTORAGE_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("ESTORAGE_TLS_KEY_FILE"))

	switch {
	case certFile == "" && keyFile == "":
		return selfSignedCertificate()
	case certFile == "" || keyFile == "":
		return tls.Certificate{}, fmt.Errorf("ESTORAGE_TLS_CERT_FILE and ESTORAGE_TLS_KEY_FILE must be set together")
	default:
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
			return tls.Certificate{}, fmt.Errorf("loading key pair: %w", err)
		} else {
			return cert, nil
		}
	}
}

// selfSignedCertificate is valid for localhost and the loopback addresses.
func selfSignedCertificate() (tls.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	now := time.Now()

	if key, err := rsa.GenerateKey(rand.Reader, 2048); err != nil {
		return tls.Certificate{}, fmt.Errorf("generating random key: %w", err)
	} else if serialNumber, err := rand.Int(rand.Reader, serialNumberLimit); err != nil {
		return tls.Certificate{}, fmt.Errorf("generating serial number: %w", err)
	} else {
		tmpl := x509.Certificate{
			SerialNumber:          serialNumber,
			Subject:               pkix.Name{CommonName: commonName},
			NotBefore:             now,
			NotAfter:              now.Add(certValidity),
			KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
			BasicConstraintsValid: true,
			DNSNames:              []string{"localhost"},
			IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		}

		if der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key); err != nil {
			return tls.Certificate{}, fmt.Errorf("creating certificate: %w", err)
		} else if leaf, err := x509.ParseCertificate(der); err != nil {
			return tls.Certificate{}, fmt.Errorf("parsing certificate: %w", err)
		} else {
			return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
		}
	}
}
