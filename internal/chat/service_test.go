package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

var (
	teacher = domain.User{Username: "mr-kofi", Role: domain.RoleTeacher, DashboardID: "123456789012"}
	student = domain.User{Username: "amina", Role: domain.RoleStudent, LinkedTeacherID: "123456789012"}
)

func TestConversationOrdering(t *testing.T) {
	s := New(store.NewMemoryKV(), 0)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticks := 0
	s.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	ctx := context.Background()

	m1, err := s.Send(ctx, teacher, "amina", "homework posted", "", "")
	if err != nil {
		t.Fatalf("send m1: %v", err)
	}
	m2, err := s.Send(ctx, student, "mr-kofi", "got it, thanks", "", "")
	if err != nil {
		t.Fatalf("send m2: %v", err)
	}
	m3, err := s.Send(ctx, teacher, "amina", "due friday", "", "")
	if err != nil {
		t.Fatalf("send m3: %v", err)
	}

	conv, err := s.Conversation(ctx, "mr-kofi", "amina")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	for i, want := range []domain.DirectMessage{m1, m2, m3} {
		if conv[i].ID != want.ID {
			t.Fatalf("message %d out of order: got %q want %q", i, conv[i].Text, want.Text)
		}
	}
}

func TestConversationExcludesOtherPairs(t *testing.T) {
	s := New(store.NewMemoryKV(), 0)
	ctx := context.Background()

	if _, err := s.Send(ctx, teacher, "amina", "for amina", "", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := s.Send(ctx, teacher, "kwame", "for kwame", "", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	conv, err := s.Conversation(ctx, "mr-kofi", "amina")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(conv) != 1 || conv[0].Receiver != "amina" {
		t.Fatalf("pair filter leaked: %+v", conv)
	}
}

func TestSendStripsMarkup(t *testing.T) {
	s := New(store.NewMemoryKV(), 0)
	msg, err := s.Send(context.Background(), student, "mr-kofi", "<script>alert(1)</script>hi", "", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if strings.Contains(msg.Text, "<") {
		t.Fatalf("markup survived: %q", msg.Text)
	}
}

func TestSendRejectsOversizedMedia(t *testing.T) {
	s := New(store.NewMemoryKV(), 100)
	media := "data:image/png;base64," + strings.Repeat("A", 200)
	if _, err := s.Send(context.Background(), student, "mr-kofi", "", media, "image/png"); !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("expected ErrMediaTooLarge, got %v", err)
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	s := New(store.NewMemoryKV(), 0)
	if _, err := s.Send(context.Background(), student, "mr-kofi", "   <p></p>", "", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}
