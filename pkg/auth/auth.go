package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	HeaderKeyHash   = "X-Estorage-Key-Hash"
	HeaderSignature = "X-Estorage-Signature"
)

// signatures are accepted this far either side of the server clock
const maxClockSkew = 2 * time.Minute

// minimum length for 256-bit entropy (32 bytes)
const minAPIKeyLength = 32

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Auth interface {
	APIKeys() APIKeyCollection
	Enabled() bool

	RequireAPIKey(c *fiber.Ctx) error
}

type auth struct {
	apiKeys APIKeyCollection
}

var _ Auth = &auth{}

// NewAuth reads comma separated keys from ESTORAGE_API_KEYS. Without keys
// every request is let through.
func NewAuth() (Auth, error) {
	a := auth{}

	env := strings.TrimSpace(os.Getenv("ESTORAGE_API_KEYS"))
	if env == "" {
		log.Warn("ESTORAGE_API_KEYS not configured, requests will not be authenticated")
		return &a, nil
	}

	for _, k := range strings.Split(env, ",") {
		key := APIKey(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if err := key.Validate(); err != nil {
			return nil, err
		}
		a.apiKeys = append(a.apiKeys, key)
	}

	return &a, nil
}

func (a *auth) APIKeys() APIKeyCollection {
	return a.apiKeys
}

func (a *auth) Enabled() bool {
	return len(a.apiKeys) > 0
}

func (a *auth) RequireAPIKey(c *fiber.Ctx) error {
	if !a.Enabled() {
		return c.Next()
	}

	keyHash := c.Get(HeaderKeyHash)
	signature := c.Get(HeaderSignature)

	if keyHash == "" {
		log.Warnf("received request with missing header %s", HeaderKeyHash)
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("%s header not provided", HeaderKeyHash))
	} else if signature == "" {
		log.Warnf("received request with missing header %s", HeaderSignature)
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("%s header not provided", HeaderSignature))
	} else if k, err := a.apiKeys.GetKeyMatchingHash(keyHash); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	} else if err := k.Verify(time.Now(), c.Body(), Signature(signature)); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("invalid signature for key hash %s: %v", keyHash, err))
	} else {
		return c.Next()
	}
}

// Signature is nonce.timestamp.mac, each part lowercase base32.
type Signature string

func (s Signature) Parse() (nonce []byte, timestamp time.Time, mac []byte, err error) {
	components := strings.Split(string(s), ".")
	var tb []byte

	if len(components) != 3 {
		err = fmt.Errorf("invalid signature: %s", s)
	} else if nonce, err = encoding.DecodeString(strings.ToUpper(components[0])); err != nil {
		return
	} else if tb, err = encoding.DecodeString(strings.ToUpper(components[1])); err != nil {
		return
	} else if mac, err = encoding.DecodeString(strings.ToUpper(components[2])); err != nil {
		return
	} else if len(tb) != 8 {
		err = fmt.Errorf("invalid timestamp in signature: %s", s)
	} else {
		timestamp = time.UnixMicro(int64(binary.BigEndian.Uint64(tb)))
	}
	return
}

func (s Signature) String() string {
	return string(s)
}

type APIKey string

func (k APIKey) Validate() error {
	if len(k) < minAPIKeyLength {
		return fmt.Errorf("ESTORAGE_API_KEYS entry is too short, must be at least %d characters", minAPIKeyLength)
	}
	return nil
}

func (k APIKey) Hash() [32]byte {
	return sha256.Sum256([]byte(k))
}

func (k APIKey) HashString() string {
	hash := k.Hash()
	return strings.ToLower(encoding.EncodeToString(hash[:]))
}

func (k APIKey) mac(data []byte, nonce []byte, timestamp time.Time) []byte {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], uint64(timestamp.UnixMicro()))

	m := hmac.New(sha256.New, []byte(k))
	m.Write(nonce)
	m.Write(tb[:])
	m.Write(data)
	return m.Sum(nil)
}

func (k APIKey) Sign(timestamp time.Time, data []byte) (Signature, error) {
	var nonce [32]byte
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], uint64(timestamp.UnixMicro()))

	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}

	mac := k.mac(data, nonce[:], timestamp)
	parts := []string{
		strings.ToLower(encoding.EncodeToString(nonce[:])),
		strings.ToLower(encoding.EncodeToString(tb[:])),
		strings.ToLower(encoding.EncodeToString(mac)),
	}
	return Signature(strings.Join(parts, ".")), nil
}

func (k APIKey) Verify(now time.Time, data []byte, signature Signature) error {
	if nonce, timestamp, mac, err := signature.Parse(); err != nil {
		return err
	} else if timestamp.Before(now.Add(-maxClockSkew)) {
		return fmt.Errorf("signature expired timestamp: %s current time: %s", timestamp, now)
	} else if timestamp.After(now.Add(maxClockSkew)) {
		return fmt.Errorf("signature not yet valid timestamp: %s current time: %s", timestamp, now)
	} else if !hmac.Equal(k.mac(data, nonce, timestamp), mac) {
		return fmt.Errorf("signature does not match request body")
	} else {
		return nil
	}
}

type APIKeyCollection []APIKey

func (c APIKeyCollection) GetKeyMatchingHash(hash string) (APIKey, error) {
	if b, err := encoding.DecodeString(strings.ToUpper(hash)); err != nil {
		return "", err
	} else if len(b) != 32 {
		return "", fmt.Errorf("invalid api key hash size: %d", len(b))
	} else {
		var h [32]byte
		copy(h[:], b)
		for _, k := range c {
			if k.Hash() == h {
				return k, nil
			}
		}
		return "", fmt.Errorf("api key for hash not configured: %s", hash)
	}
}
