package encryptor

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Credentials is the process key pair used for the outer encryption layer.
type Credentials struct {
	PublicKey  string
	PrivateKey string
}

// CredentialsFromEnv reads the key pair inline from ESTORAGE_RSA and
// ESTORAGE_RSA_PUB, or from the files named by ESTORAGE_RSA_FILE and
// ESTORAGE_RSA_PUB_FILE.
func CredentialsFromEnv() (Credentials, error) {
	var c Credentials

	if privateKey, err := envOrFile("ESTORAGE_RSA"); err != nil {
		return c, err
	} else if publicKey, err := envOrFile("ESTORAGE_RSA_PUB"); err != nil {
		return c, err
	} else {
		c.PrivateKey = privateKey
		c.PublicKey = publicKey
		return c, nil
	}
}

func envOrFile(name string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}

	path := strings.TrimSpace(os.Getenv(name + "_FILE"))
	if path == "" {
		return "", fmt.Errorf("%s not configured, set %s or %s_FILE", name, name, name)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s_FILE: %w", name, err)
	}
	return string(b), nil
}

func parsePublicKey(s string) (*rsa.PublicKey, error) {
	data := []byte(strings.TrimSpace(s))

	if block, _ := pem.Decode(data); block != nil {
		switch block.Type {
		case "PUBLIC KEY":
			pub, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if rsaPub, ok := pub.(*rsa.PublicKey); ok {
				return rsaPub, nil
			}
			return nil, fmt.Errorf("not an RSA public key")
		case "RSA PUBLIC KEY":
			return x509.ParsePKCS1PublicKey(block.Bytes)
		default:
			return nil, fmt.Errorf("unsupported public key PEM block: %s", block.Type)
		}
	}

	// ssh-rsa AAAA... as written by ssh-keygen
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	cryptoPub, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported ssh public key type: %s", pub.Type())
	}
	if rsaPub, ok := cryptoPub.CryptoPublicKey().(*rsa.PublicKey); ok {
		return rsaPub, nil
	}
	return nil, fmt.Errorf("not an RSA public key: %s", pub.Type())
}

func parsePrivateKey(s string) (*rsa.PrivateKey, error) {
	key, err := ssh.ParseRawPrivateKey([]byte(strings.TrimSpace(s)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("not an RSA private key: %T", key)
	}
}
