package session

import (
	"context"
	"encoding/json"
	"time"

	"studentsphere/pkg/store"
)

const revokedKeyPrefix = "session_revoked:"

// Revoker tracks revoked session IDs until their tokens expire.
type Revoker interface {
	Revoke(id string, ttl time.Duration) error
	IsRevoked(id string) (bool, error)
}

// revocation is the record kept per revoked session. Store values must be
// valid JSON (the Postgres backing keeps them in a jsonb column), so the
// expiry is written as a JSON document rather than a bare timestamp.
type revocation struct {
	Expiry time.Time `json:"expiry"`
}

// KVRevoker records revocations in the portal store. The store has no TTL
// of its own, so the expiry rides in the value and stale entries are
// dropped when next seen.
type KVRevoker struct {
	kv store.KV
}

// NewKVRevoker builds a store-backed revoker.
func NewKVRevoker(kv store.KV) *KVRevoker {
	return &KVRevoker{kv: kv}
}

// Revoke marks id revoked until ttl elapses.
func (r *KVRevoker) Revoke(id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(revocation{Expiry: time.Now().UTC().Add(ttl)})
	if err != nil {
		return err
	}
	return r.kv.Set(context.Background(), revokedKeyPrefix+id, string(raw))
}

// IsRevoked reports whether id is currently revoked.
func (r *KVRevoker) IsRevoked(id string) (bool, error) {
	ctx := context.Background()
	raw, ok, err := r.kv.Get(ctx, revokedKeyPrefix+id)
	if err != nil || !ok {
		return false, err
	}
	var rec revocation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || time.Now().After(rec.Expiry) {
		_ = r.kv.Remove(ctx, revokedKeyPrefix+id)
		return false, nil
	}
	return true, nil
}
