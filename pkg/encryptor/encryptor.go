// Package encryptor protects values with two independent layers: AES-256-GCM
// keyed by a per-item secret, then a hybrid RSA-OAEP envelope under the
// process key pair. Reading a value requires both the secret and the private
// key.
package encryptor

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrPrivateKeyMismatch  = errors.New("ciphertext was not encrypted for this key pair")
	ErrSecretMismatch      = errors.New("ciphertext was not encrypted with this secret")
)

const envelopeKeySize = 32

type Encryptor interface {
	Encrypt(secret string, plaintext []byte) (string, error)
	Decrypt(secret string, ciphertext string) ([]byte, error)
}

type encryptor struct {
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
}

var _ Encryptor = &encryptor{}

func NewEncryptor(creds Credentials) (Encryptor, error) {
	if publicKey, err := parsePublicKey(creds.PublicKey); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	} else if privateKey, err := parsePrivateKey(creds.PrivateKey); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	} else if !privateKey.PublicKey.Equal(publicKey) {
		return nil, fmt.Errorf("public key does not belong to private key")
	} else {
		return &encryptor{publicKey: publicKey, privateKey: privateKey}, nil
	}
}

func (e *encryptor) Encrypt(secret string, plaintext []byte) (string, error) {
	inner, err := seal(secretKey(secret), plaintext)
	if err != nil {
		return "", err
	}

	envelopeKey := make([]byte, envelopeKeySize)
	if _, err := rand.Read(envelopeKey); err != nil {
		return "", err
	}

	if wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, e.publicKey, envelopeKey, nil); err != nil {
		return "", err
	} else if outer, err := seal(envelopeKey, inner); err != nil {
		return "", err
	} else {
		return hex.EncodeToString(append(wrappedKey, outer...)), nil
	}
}

func (e *encryptor) Decrypt(secret string, ciphertext string) ([]byte, error) {
	b, err := hex.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	wrappedKeySize := e.privateKey.Size()
	if len(b) <= wrappedKeySize {
		return nil, fmt.Errorf("%w: too short", ErrMalformedCiphertext)
	}
	wrappedKey, outer := b[:wrappedKeySize], b[wrappedKeySize:]

	envelopeKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, e.privateKey, wrappedKey, nil)
	if err != nil {
		return nil, ErrPrivateKeyMismatch
	}

	inner, err := open(envelopeKey, outer)
	if errors.Is(err, ErrMalformedCiphertext) {
		return nil, err
	} else if err != nil {
		return nil, ErrPrivateKeyMismatch
	}

	plaintext, err := open(secretKey(secret), inner)
	if errors.Is(err, ErrMalformedCiphertext) {
		return nil, err
	} else if err != nil {
		return nil, ErrSecretMismatch
	}

	return plaintext, nil
}
