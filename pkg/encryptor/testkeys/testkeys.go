// Package testkeys generates a throwaway RSA key pair for tests.
package testkeys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/grexie/estorage/pkg/encryptor"
)

var (
	once sync.Once
	key  *rsa.PrivateKey
	err  error
)

func PrivateKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()

	once.Do(func() {
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	})
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	return key
}

// Credentials returns the shared key pair as PKCS#1 private and PKIX public PEM.
func Credentials(t testing.TB) encryptor.Credentials {
	t.Helper()

	k := PrivateKey(t)
	pubASN1, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	return encryptor.Credentials{
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})),
	}
}

func Encryptor(t testing.TB) encryptor.Encryptor {
	t.Helper()

	e, err := encryptor.NewEncryptor(Credentials(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	return e
}
