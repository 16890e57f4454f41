package store

import "context"

// Collection keys. Every collection is stored whole, as one JSON value
// under one key; mutations are read-all/mutate/write-all with
// last-writer-wins between concurrent writers. That write model is part of
// the portal's documented contract, not an accident: callers race at the
// granularity of the whole collection and the newest write survives.
const (
	KeyUsers    = "users"
	KeyMessages = "messages"
	KeyUploads  = "uploads"

	classChatPrefix   = "class_chat_"
	liveSessionPrefix = "live_session_"
)

// ClassChatKey returns the key holding a class partition's broadcast log.
func ClassChatKey(dashboardID string) string {
	return classChatPrefix + dashboardID
}

// LiveSessionKey returns the key holding a teacher's live-session marker.
func LiveSessionKey(teacherID string) string {
	return liveSessionPrefix + teacherID
}

// Event is a change notification: the key that changed and its new value.
// Removed is set when the key was deleted.
type Event struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Removed bool   `json:"removed,omitempty"`
}

// KV is a key-to-string store with change notifications. Every value must
// be a valid JSON document: the Postgres backing keeps values in a jsonb
// column and rejects anything else at write time, so the other backings
// hold callers to the same contract.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Subscribe returns a channel of change events and a cancel function.
	// Events produced by the subscriber's own writes are delivered too.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}
