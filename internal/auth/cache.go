package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"expense-svc/internal/cache"
)

// CachingAuthenticator remembers Allow verdicts for the lifetime of the
// underlying cache entries. Denials are never cached, so a credential
// that becomes valid is accepted on the next request.
type CachingAuthenticator struct {
	next  Authenticator
	cache cache.Cache[bool]
}

func NewCachingAuthenticator(next Authenticator, c cache.Cache[bool]) *CachingAuthenticator {
	return &CachingAuthenticator{next: next, cache: c}
}

func (a *CachingAuthenticator) Verify(ctx context.Context, identity, secret string) bool {
	key := verdictKey(identity, secret)
	if ok, hit := a.cache.Get(key); hit && ok {
		return true
	}
	if !a.next.Verify(ctx, identity, secret) {
		return false
	}
	a.cache.Set(key, true)
	return true
}

// verdictKey hashes both tokens so secrets are not held in memory verbatim.
func verdictKey(identity, secret string) string {
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
