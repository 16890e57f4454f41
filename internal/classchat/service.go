package classchat

import (
	"context"
	"errors"
	"strings"
	"time"

	"studentsphere/internal/directory"
	"studentsphere/internal/util"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

var (
	// ErrTeacherWithoutDashboard means a teacher account has no dashboard
	// ID yet and so owns no class partition.
	ErrTeacherWithoutDashboard = errors.New("your account is missing a dashboard ID")
	// ErrNotLinked means the student is not connected to any class.
	ErrNotLinked = errors.New("you are not linked to any class, please contact your teacher")

	ErrEmptyMessage  = errors.New("message is empty")
	ErrMediaTooLarge = errors.New("file too large, please choose a smaller file")
)

// Service is the class-wide broadcast log, one partition per teacher
// dashboard ID.
type Service struct {
	kv         store.KV
	dir        *directory.Service
	mediaLimit int
	now        func() time.Time
}

// New constructs the class-messaging service.
func New(kv store.KV, dir *directory.Service, mediaLimit int) *Service {
	if mediaLimit <= 0 {
		mediaLimit = 5 * 1024 * 1024
	}
	return &Service{kv: kv, dir: dir, mediaLimit: mediaLimit, now: func() time.Time { return time.Now().UTC() }}
}

// Resolve returns the class partition key for a user: a teacher's own
// dashboard ID, a student's linked teacher ID.
func (s *Service) Resolve(user domain.User) (string, error) {
	key := user.PartitionKey()
	if key != "" {
		return key, nil
	}
	if user.Role == domain.RoleTeacher {
		return "", ErrTeacherWithoutDashboard
	}
	return "", ErrNotLinked
}

// Send appends a broadcast message to the sender's class log.
func (s *Service) Send(ctx context.Context, sender domain.User, text, media, mediaType string) (domain.ClassMessage, error) {
	key, err := s.Resolve(sender)
	if err != nil {
		return domain.ClassMessage{}, err
	}
	text = strings.TrimSpace(util.StripHTML(text))
	if text == "" && media == "" {
		return domain.ClassMessage{}, ErrEmptyMessage
	}
	if media != "" && len(media) > s.mediaLimit {
		return domain.ClassMessage{}, ErrMediaTooLarge
	}

	msg := domain.ClassMessage{
		Username:  sender.Username,
		Role:      sender.Role,
		Text:      text,
		MediaType: mediaType,
		Timestamp: s.now(),
	}
	if media != "" {
		msg.Media = &media
	}

	chatKey := store.ClassChatKey(key)
	messages, err := store.GetList[domain.ClassMessage](ctx, s.kv, chatKey)
	if err != nil {
		return domain.ClassMessage{}, err
	}
	messages = append(messages, msg)
	if err := store.PutList(ctx, s.kv, chatKey, messages); err != nil {
		return domain.ClassMessage{}, err
	}
	return msg, nil
}

// History returns the partition's full log in insertion order, which is
// chronological since the log is append-only.
func (s *Service) History(ctx context.Context, partitionKey string) ([]domain.ClassMessage, error) {
	return store.GetList[domain.ClassMessage](ctx, s.kv, store.ClassChatKey(partitionKey))
}

// MemberCount reports how many users belong to the class: the owning
// teacher plus the linked students.
func (s *Service) MemberCount(ctx context.Context, partitionKey string) (int, error) {
	members, err := s.dir.ClassMembers(ctx, partitionKey)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}
