package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", time.Minute, NewKVRevoker(store.NewMemoryKV()))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Issue(domain.User{Username: "mr-kofi", Role: domain.RoleTeacher})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Username != "mr-kofi" || claims.Role != domain.RoleTeacher {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRevokedTokenFailsVerify(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Issue(domain.User{Username: "amina", Role: domain.RoleStudent})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

// The Postgres backing stores values in a jsonb column, so a revocation
// written as anything but valid JSON would fail the Set and leave the
// token live after logout.
func TestRevocationStoredAsJSON(t *testing.T) {
	kv := store.NewMemoryKV()
	r := NewKVRevoker(kv)
	if err := r.Revoke("session-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	raw, ok, err := kv.Get(context.Background(), "session_revoked:session-1")
	if err != nil || !ok {
		t.Fatalf("get revocation: ok=%v err=%v", ok, err)
	}
	if !json.Valid([]byte(raw)) {
		t.Fatalf("revocation value is not valid JSON: %q", raw)
	}
	revoked, err := r.IsRevoked("session-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatal("session not reported revoked")
	}
}

func TestExpiredRevocationIsDropped(t *testing.T) {
	kv := store.NewMemoryKV()
	r := NewKVRevoker(kv)
	if err := kv.Set(context.Background(), "session_revoked:stale", `{"expiry":"2000-01-01T00:00:00Z"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	revoked, err := r.IsRevoked("stale")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatal("expired revocation still reported revoked")
	}
	if _, ok, _ := kv.Get(context.Background(), "session_revoked:stale"); ok {
		t.Fatal("stale revocation entry not removed")
	}
}

func TestManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", time.Minute, nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
