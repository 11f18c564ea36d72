package estorage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/grexie/estorage/pkg/storage/interfaces"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// fingerprintPassword is the bcrypt input for secret. bcrypt only takes 72
// bytes, so secrets of any length are reduced to a fixed size digest first.
// The digest is base64 encoded because bcrypt stops at a NUL byte.
func fingerprintPassword(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// verifier checks secrets against fingerprints. Successful checks are
// remembered per (fingerprint, HMAC of secret) so repeated reads skip bcrypt.
// The HMAC key never leaves the process and failures are never cached.
type verifier struct {
	cache  *lru.Cache[cacheKey, struct{}]
	macKey []byte
}

type cacheKey struct {
	Hash string
	MAC  [sha256.Size]byte
}

func newVerifier(size int) (*verifier, error) {
	v := verifier{}
	if size <= 0 {
		return &v, nil
	}

	v.macKey = make([]byte, 32)
	if _, err := rand.Read(v.macKey); err != nil {
		return nil, err
	}

	if c, err := lru.New[cacheKey, struct{}](size); err != nil {
		return nil, err
	} else {
		v.cache = c
	}

	return &v, nil
}

func (v *verifier) key(secret string, hash string) cacheKey {
	mac := hmac.New(sha256.New, v.macKey)
	mac.Write([]byte(secret))

	k := cacheKey{Hash: hash}
	copy(k.MAC[:], mac.Sum(nil))
	return k
}

func (v *verifier) verify(secret string, hash string) bool {
	var k cacheKey
	if v.cache != nil {
		k = v.key(secret, hash)
		if v.cache.Contains(k) {
			return true
		}
	}

	// mismatches and unparseable fingerprints both fail here
	if err := bcrypt.CompareHashAndPassword([]byte(hash), fingerprintPassword(secret)); err != nil {
		return false
	}

	if v.cache != nil {
		v.cache.Add(k, struct{}{})
	}
	return true
}

// verifyAll reports whether secret verifies against every item, checking
// items concurrently.
func (v *verifier) verifyAll(ctx context.Context, secret string, items []interfaces.Item) (bool, error) {
	results := make([]bool, len(items))

	g, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = v.verify(secret, item.Hash())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, ok := range results {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
