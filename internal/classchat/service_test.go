package classchat

import (
	"context"
	"errors"
	"testing"

	"studentsphere/internal/directory"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

const teacherID = "123456789012"

func newTestService(t *testing.T) (*Service, *directory.Service) {
	t.Helper()
	kv := store.NewMemoryKV()
	dir := directory.New(kv)
	return New(kv, dir, 0), dir
}

func register(t *testing.T, dir *directory.Service, in directory.RegisterInput) domain.User {
	t.Helper()
	user, err := dir.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register %s: %v", in.Username, err)
	}
	return user
}

func TestSendAndHistorySharePartition(t *testing.T) {
	s, dir := newTestService(t)
	ctx := context.Background()
	teacher := register(t, dir, directory.RegisterInput{
		Username: "mr-kofi", Credential: "x", Role: domain.RoleTeacher, DashboardID: teacherID,
	})
	student := register(t, dir, directory.RegisterInput{
		Username: "amina", Credential: "x", Role: domain.RoleStudent, ConnectID: teacherID,
	})

	if _, err := s.Send(ctx, teacher, "welcome to class", "", ""); err != nil {
		t.Fatalf("teacher send: %v", err)
	}
	if _, err := s.Send(ctx, student, "hello everyone", "", ""); err != nil {
		t.Fatalf("student send: %v", err)
	}

	key, err := s.Resolve(student)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	history, err := s.History(ctx, key)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Username != "mr-kofi" || history[1].Username != "amina" {
		t.Fatalf("insertion order broken: %+v", history)
	}
	if history[0].Role != domain.RoleTeacher {
		t.Fatalf("role not denormalized: %+v", history[0])
	}
}

func TestResolveUnlinkedStudent(t *testing.T) {
	s, _ := newTestService(t)
	unlinked := domain.User{Username: "drifter", Role: domain.RoleStudent}
	if _, err := s.Resolve(unlinked); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
	if _, err := s.Send(context.Background(), unlinked, "hi", "", ""); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked on send, got %v", err)
	}
}

func TestResolveTeacherWithoutDashboard(t *testing.T) {
	s, _ := newTestService(t)
	bare := domain.User{Username: "new-teacher", Role: domain.RoleTeacher}
	if _, err := s.Resolve(bare); !errors.Is(err, ErrTeacherWithoutDashboard) {
		t.Fatalf("expected ErrTeacherWithoutDashboard, got %v", err)
	}
}

func TestMemberCount(t *testing.T) {
	s, dir := newTestService(t)
	register(t, dir, directory.RegisterInput{
		Username: "mr-kofi", Credential: "x", Role: domain.RoleTeacher, DashboardID: teacherID,
	})
	register(t, dir, directory.RegisterInput{
		Username: "amina", Credential: "x", Role: domain.RoleStudent, ConnectID: teacherID,
	})
	register(t, dir, directory.RegisterInput{
		Username: "kwame", Credential: "x", Role: domain.RoleStudent, ConnectID: teacherID,
	})

	count, err := s.MemberCount(context.Background(), teacherID)
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 members, got %d", count)
	}
}

func TestPartitionsAreIsolated(t *testing.T) {
	s, dir := newTestService(t)
	ctx := context.Background()
	first := register(t, dir, directory.RegisterInput{
		Username: "mr-kofi", Credential: "x", Role: domain.RoleTeacher, DashboardID: teacherID,
	})
	second := register(t, dir, directory.RegisterInput{
		Username: "ms-ama", Credential: "x", Role: domain.RoleTeacher, DashboardID: "210987654321",
	})

	if _, err := s.Send(ctx, first, "first class only", "", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	history, err := s.History(ctx, second.DashboardID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("partition leak: %+v", history)
	}
}
