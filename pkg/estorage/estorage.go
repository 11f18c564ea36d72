// Package estorage is an encrypted key-value store on top of a pluggable
// storage backend. Each value is owned by the secret it was saved with: the
// secret encrypts the value and a bcrypt fingerprint of it is stored next to
// the ciphertext, so only the same secret can read the value back.
package estorage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/estorage/pkg/encryptor"
	"github.com/grexie/estorage/pkg/storage/interfaces"
	"golang.org/x/crypto/bcrypt"
)

var (
	idPattern       = regexp.MustCompile(`^[\w-]*$`)
	idSearchPattern = regexp.MustCompile(`^[\w-]*\*?$`)
)

const DefaultSaltRounds = 10

type Config struct {
	// SaltRounds is the bcrypt cost of fingerprints, DefaultSaltRounds when 0.
	SaltRounds int
	// VerifyCacheSize bounds the cache of successful fingerprint checks, 0 disables it.
	VerifyCacheSize int
}

type Result struct {
	ID    interfaces.ID `json:"id"`
	Value any           `json:"value"`
}

type EncryptedStorage interface {
	Save(ctx context.Context, id interfaces.ID, secret string, value any) error
	Find(ctx context.Context, query string, secret string) ([]Result, error)
}

type encryptedStorage struct {
	backend    interfaces.IStorageBackend
	encryptor  encryptor.Encryptor
	saltRounds int
	verifier   *verifier
}

var _ EncryptedStorage = &encryptedStorage{}

func NewEncryptedStorage(backend interfaces.IStorageBackend, enc encryptor.Encryptor, config Config) (EncryptedStorage, error) {
	s := encryptedStorage{backend: backend, encryptor: enc, saltRounds: config.SaltRounds}

	if s.saltRounds == 0 {
		s.saltRounds = DefaultSaltRounds
	}
	if s.saltRounds < bcrypt.MinCost || s.saltRounds > bcrypt.MaxCost {
		return nil, fmt.Errorf("salt rounds must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, s.saltRounds)
	}

	if v, err := newVerifier(config.VerifyCacheSize); err != nil {
		return nil, err
	} else {
		s.verifier = v
	}

	return &s, nil
}

// Save encrypts value with secret and stores it under id, replacing any
// previous item and its owner.
func (s *encryptedStorage) Save(ctx context.Context, id interfaces.ID, secret string, value any) error {
	if !idPattern.MatchString(id) {
		return &IdentifierInvalidError{Field: "id", Reason: "'id' is not valid. it can only contain alphanumeric characters, underscores and dashes"}
	}

	hash, err := bcrypt.GenerateFromPassword(fingerprintPassword(secret), s.saltRounds)
	if err != nil {
		return fmt.Errorf("fingerprinting secret: %w", err)
	}

	if b, err := json.Marshal(value); err != nil {
		return fmt.Errorf("serializing value: %w", err)
	} else if data, err := s.encryptor.Encrypt(secret, b); err != nil {
		return fmt.Errorf("encrypting value: %w", err)
	} else {
		return s.backend.Save(ctx, interfaces.NewItem(id, string(hash), data))
	}
}

// Find returns every item matching query, decrypted with secret. All matched
// items must be owned by secret, otherwise the result is empty.
func (s *encryptedStorage) Find(ctx context.Context, query string, secret string) ([]Result, error) {
	if !idSearchPattern.MatchString(query) {
		return nil, &IdentifierInvalidError{Field: "id", Reason: "query is not valid. it has to be a valid 'id' with optional * operator"}
	}

	items, err := s.backend.Find(ctx, query)
	if err != nil {
		return nil, err
	}

	if ok, err := s.verifier.verifyAll(ctx, secret, items); err != nil {
		return nil, err
	} else if !ok {
		log.Warnf("id query '%s' is not authenticated for provided key", query)
		return []Result{}, nil
	}

	out := make([]Result, len(items))
	for i, item := range items {
		if plaintext, err := s.encryptor.Decrypt(secret, item.Data()); err != nil {
			return nil, fmt.Errorf("decrypting %s: %w", item.ID(), err)
		} else if err := json.Unmarshal(plaintext, &out[i].Value); err != nil {
			return nil, fmt.Errorf("deserializing %s: %w", item.ID(), err)
		}
		out[i].ID = item.ID()
	}

	return out, nil
}
