package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

// Room tells the client which conference to join. The name is derived
// from the teacher ID so everyone in a class lands in the same room.
type Room struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// Service manages the per-teacher live-session marker and the conference
// room derivation. Start and Stop are idempotent.
type Service struct {
	kv         store.KV
	namespace  string
	confDomain string
	now        func() time.Time
}

// New constructs the live-session service. namespace prefixes room names;
// confDomain is the conferencing host the client should embed.
func New(kv store.KV, namespace, confDomain string) *Service {
	if namespace == "" {
		namespace = "StudentSphere"
	}
	if confDomain == "" {
		confDomain = "meet.jit.si"
	}
	return &Service{kv: kv, namespace: namespace, confDomain: confDomain, now: func() time.Time { return time.Now().UTC() }}
}

// Start sets the live marker for a teacher. Starting an already-live
// session keeps the original marker and start time.
func (s *Service) Start(ctx context.Context, teacherID string) error {
	live, err := s.IsLive(ctx, teacherID)
	if err != nil || live {
		return err
	}
	marker := domain.LiveSession{Status: domain.LiveStatus, StartTime: s.now()}
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encode live marker: %w", err)
	}
	return s.kv.Set(ctx, store.LiveSessionKey(teacherID), string(raw))
}

// Stop clears the live marker. Stopping an absent session is a no-op.
func (s *Service) Stop(ctx context.Context, teacherID string) error {
	return s.kv.Remove(ctx, store.LiveSessionKey(teacherID))
}

// IsLive reports whether the teacher's class is currently live.
func (s *Service) IsLive(ctx context.Context, teacherID string) (bool, error) {
	_, ok, err := s.Session(ctx, teacherID)
	return ok, err
}

// Session returns the live marker when present.
func (s *Service) Session(ctx context.Context, teacherID string) (domain.LiveSession, bool, error) {
	raw, ok, err := s.kv.Get(ctx, store.LiveSessionKey(teacherID))
	if err != nil || !ok {
		return domain.LiveSession{}, false, err
	}
	var marker domain.LiveSession
	if err := json.Unmarshal([]byte(raw), &marker); err != nil {
		return domain.LiveSession{}, false, fmt.Errorf("decode live marker: %w", err)
	}
	return marker, marker.Status == domain.LiveStatus, nil
}

// Room derives the conference room for a class.
func (s *Service) Room(teacherID string) Room {
	return Room{
		Domain: s.confDomain,
		Name:   fmt.Sprintf("%s_Class_%s", s.namespace, teacherID),
	}
}

// Leave mirrors the conferencing widget's conference-left callback: when
// the teacher hangs up, the class stops being live. Students leaving have
// no effect on the marker.
func (s *Service) Leave(ctx context.Context, user domain.User) error {
	if user.Role != domain.RoleTeacher || user.DashboardID == "" {
		return nil
	}
	return s.Stop(ctx, user.DashboardID)
}
