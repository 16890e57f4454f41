package live

import (
	"context"
	"testing"
	"time"

	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

const teacherID = "123456789012"

func TestStartIsIdempotent(t *testing.T) {
	s := New(store.NewMemoryKV(), "", "")
	ctx := context.Background()

	if err := s.Start(ctx, teacherID); err != nil {
		t.Fatalf("first start: %v", err)
	}
	first, ok, err := s.Session(ctx, teacherID)
	if err != nil || !ok {
		t.Fatalf("session after start: ok=%v err=%v", ok, err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := s.Start(ctx, teacherID); err != nil {
		t.Fatalf("second start: %v", err)
	}
	live, err := s.IsLive(ctx, teacherID)
	if err != nil || !live {
		t.Fatalf("expected still live, got live=%v err=%v", live, err)
	}
	second, _, _ := s.Session(ctx, teacherID)
	if !second.StartTime.Equal(first.StartTime) {
		t.Fatalf("second start replaced the marker: %v vs %v", second.StartTime, first.StartTime)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(store.NewMemoryKV(), "", "")
	ctx := context.Background()

	if err := s.Stop(ctx, teacherID); err != nil {
		t.Fatalf("stop on absent session: %v", err)
	}
	if err := s.Start(ctx, teacherID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx, teacherID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	live, err := s.IsLive(ctx, teacherID)
	if err != nil || live {
		t.Fatalf("expected not live, got live=%v err=%v", live, err)
	}
}

func TestRoomName(t *testing.T) {
	s := New(store.NewMemoryKV(), "StudentSphere", "meet.jit.si")
	room := s.Room(teacherID)
	if room.Name != "StudentSphere_Class_123456789012" {
		t.Fatalf("unexpected room name: %q", room.Name)
	}
	if room.Domain != "meet.jit.si" {
		t.Fatalf("unexpected domain: %q", room.Domain)
	}
}

func TestLeaveStopsTeacherSessionOnly(t *testing.T) {
	s := New(store.NewMemoryKV(), "", "")
	ctx := context.Background()
	teacher := domain.User{Username: "mr-kofi", Role: domain.RoleTeacher, DashboardID: teacherID}
	student := domain.User{Username: "amina", Role: domain.RoleStudent, LinkedTeacherID: teacherID}

	if err := s.Start(ctx, teacherID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Leave(ctx, student); err != nil {
		t.Fatalf("student leave: %v", err)
	}
	if live, _ := s.IsLive(ctx, teacherID); !live {
		t.Fatalf("student leaving ended the class")
	}
	if err := s.Leave(ctx, teacher); err != nil {
		t.Fatalf("teacher leave: %v", err)
	}
	if live, _ := s.IsLive(ctx, teacherID); live {
		t.Fatalf("teacher leaving did not end the class")
	}
}
