package encryptor_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/grexie/estorage/pkg/encryptor"
	"github.com/grexie/estorage/pkg/encryptor/testkeys"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	for _, plaintext := range [][]byte{
		[]byte(`"data"`),
		[]byte(`{"city":"Istanbul"}`),
		{},
		make([]byte, 64*1024),
	} {
		ciphertext, err := e.Encrypt("secret", plaintext)
		require.NoError(t, err)
		require.Greater(t, len(ciphertext), 100)

		got, err := e.Decrypt("secret", ciphertext)
		require.NoError(t, err)
		require.Equal(t, len(plaintext), len(got))
		require.True(t, string(plaintext) == string(got))
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	a, err := e.Encrypt("secret", []byte("data"))
	require.NoError(t, err)
	b, err := e.Encrypt("secret", []byte("data"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWrongSecret(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	ciphertext, err := e.Encrypt("s1", []byte("data"))
	require.NoError(t, err)

	got, err := e.Decrypt("s2", ciphertext)
	require.ErrorIs(t, err, encryptor.ErrSecretMismatch)
	require.Nil(t, got)
}

func TestDecryptWrongKeyPair(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubASN1, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	require.NoError(t, err)
	e2, err := encryptor.NewEncryptor(encryptor.Credentials{
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(other)})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})),
	})
	require.NoError(t, err)

	ciphertext, err := e.Encrypt("secret", []byte("data"))
	require.NoError(t, err)

	_, err = e2.Decrypt("secret", ciphertext)
	require.ErrorIs(t, err, encryptor.ErrPrivateKeyMismatch)
}

func TestDecryptTampered(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	ciphertext, err := e.Encrypt("secret", []byte("data"))
	require.NoError(t, err)

	b, err := hex.DecodeString(ciphertext)
	require.NoError(t, err)
	b[len(b)-1] ^= 0xff

	_, err = e.Decrypt("secret", hex.EncodeToString(b))
	require.ErrorIs(t, err, encryptor.ErrPrivateKeyMismatch)
}

func TestDecryptMalformed(t *testing.T) {
	t.Parallel()
	e := testkeys.Encryptor(t)

	_, err := e.Decrypt("secret", "Istanbul")
	require.ErrorIs(t, err, encryptor.ErrMalformedCiphertext)

	_, err = e.Decrypt("secret", "abcd")
	require.ErrorIs(t, err, encryptor.ErrMalformedCiphertext)
}

func TestNewEncryptorKeyFormats(t *testing.T) {
	t.Parallel()
	k := testkeys.PrivateKey(t)

	sshPub, err := ssh.NewPublicKey(&k.PublicKey)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(k)
	require.NoError(t, err)

	creds := encryptor.Credentials{
		PublicKey:  string(ssh.MarshalAuthorizedKey(sshPub)),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
	}
	e, err := encryptor.NewEncryptor(creds)
	require.NoError(t, err)

	creds = encryptor.Credentials{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&k.PublicKey)})),
		PrivateKey: testkeys.Credentials(t).PrivateKey,
	}
	e2, err := encryptor.NewEncryptor(creds)
	require.NoError(t, err)

	ciphertext, err := e.Encrypt("secret", []byte("data"))
	require.NoError(t, err)
	got, err := e2.Decrypt("secret", ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), got)
}

func TestNewEncryptorRejectsMismatchedPair(t *testing.T) {
	t.Parallel()

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubASN1, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	require.NoError(t, err)

	_, err = encryptor.NewEncryptor(encryptor.Credentials{
		PrivateKey: testkeys.Credentials(t).PrivateKey,
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})),
	})
	require.ErrorContains(t, err, "does not belong")

	_, err = encryptor.NewEncryptor(encryptor.Credentials{PrivateKey: "nope", PublicKey: "nope"})
	require.ErrorContains(t, err, "invalid public key")
}

func TestCredentialsFromEnv(t *testing.T) {
	creds := testkeys.Credentials(t)
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "estorage_rsa.pub")
	require.NoError(t, os.WriteFile(pubPath, []byte(creds.PublicKey), 0600))

	t.Setenv("ESTORAGE_RSA", creds.PrivateKey)
	t.Setenv("ESTORAGE_RSA_PUB", "")
	t.Setenv("ESTORAGE_RSA_PUB_FILE", pubPath)

	got, err := encryptor.CredentialsFromEnv()
	require.NoError(t, err)
	require.Equal(t, creds.PrivateKey, got.PrivateKey+"\n")
	require.Equal(t, creds.PublicKey, got.PublicKey)

	t.Setenv("ESTORAGE_RSA", "")
	t.Setenv("ESTORAGE_RSA_FILE", "")
	_, err = encryptor.CredentialsFromEnv()
	require.ErrorContains(t, err, "ESTORAGE_RSA not configured")
}
