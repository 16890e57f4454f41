package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func testKVContract(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "users"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "users", `[{"username":"amina"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := kv.Get(ctx, "users")
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if value != `[{"username":"amina"}]` {
		t.Fatalf("unexpected value: %q", value)
	}
	if err := kv.Remove(ctx, "users"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "users"); ok {
		t.Fatalf("expected key gone after remove")
	}
}

func testKVSubscribe(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	events, cancel, err := kv.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := kv.Set(ctx, "live_session_111122223333", `{"status":"live"}`); err != nil {
		t.Fatalf("set: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Key != "live_session_111122223333" {
			t.Fatalf("unexpected event key: %q", ev.Key)
		}
		if ev.Removed {
			t.Fatalf("expected a write event, got removal")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no change event delivered")
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	testKVContract(t, kv)
	testKVSubscribe(t, kv)
}

func TestRedisKV(t *testing.T) {
	srv := miniredis.RunT(t)
	kv := NewRedisKV(srv.Addr(), "")
	testKVContract(t, kv)
	testKVSubscribe(t, kv)
}

func TestListRoundTripAndLastWriterWins(t *testing.T) {
	type row struct {
		Name string `json:"name"`
	}
	ctx := context.Background()
	kv := NewMemoryKV()

	if items, err := GetList[row](ctx, kv, "uploads"); err != nil || len(items) != 0 {
		t.Fatalf("empty list expected, got %v err=%v", items, err)
	}
	if err := PutList(ctx, kv, "uploads", []row{{Name: "a"}, {Name: "b"}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Two writers both read, mutate, and write the whole collection; the
	// second write replaces the first wholesale.
	first, _ := GetList[row](ctx, kv, "uploads")
	second, _ := GetList[row](ctx, kv, "uploads")
	_ = PutList(ctx, kv, "uploads", append(first, row{Name: "from-first"}))
	_ = PutList(ctx, kv, "uploads", append(second, row{Name: "from-second"}))

	final, err := GetList[row](ctx, kv, "uploads")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(final) != 3 || final[2].Name != "from-second" {
		t.Fatalf("expected last writer to win, got %v", final)
	}
}
