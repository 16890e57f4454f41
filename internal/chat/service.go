package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"studentsphere/internal/util"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

var (
	ErrReceiverRequired = errors.New("receiver required")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMediaTooLarge    = errors.New("file too large, please choose a smaller file")
)

// Service is the direct-message log. Append-only: no update or delete.
type Service struct {
	kv         store.KV
	mediaLimit int
	now        func() time.Time
}

// New constructs the direct-messaging service. mediaLimit caps encoded
// attachments; 0 applies the portal default.
func New(kv store.KV, mediaLimit int) *Service {
	if mediaLimit <= 0 {
		mediaLimit = 5 * 1024 * 1024
	}
	return &Service{kv: kv, mediaLimit: mediaLimit, now: func() time.Time { return time.Now().UTC() }}
}

// Send appends a message from sender to receiver. The receiver is not
// checked for existence; contacts are derived at read time and a message
// to a vanished account is simply never read.
func (s *Service) Send(ctx context.Context, sender domain.User, receiver, text, media, mediaType string) (domain.DirectMessage, error) {
	receiver = strings.TrimSpace(receiver)
	if receiver == "" {
		return domain.DirectMessage{}, ErrReceiverRequired
	}
	text = strings.TrimSpace(util.StripHTML(text))
	if text == "" && media == "" {
		return domain.DirectMessage{}, ErrEmptyMessage
	}
	if media != "" && len(media) > s.mediaLimit {
		return domain.DirectMessage{}, ErrMediaTooLarge
	}

	msg := domain.DirectMessage{
		ID:        util.NewID(),
		Sender:    sender.Username,
		Receiver:  receiver,
		Text:      text,
		MediaType: mediaType,
		Date:      s.now(),
	}
	if media != "" {
		msg.Media = &media
	}

	messages, err := store.GetList[domain.DirectMessage](ctx, s.kv, store.KeyMessages)
	if err != nil {
		return domain.DirectMessage{}, err
	}
	messages = append(messages, msg)
	if err := store.PutList(ctx, s.kv, store.KeyMessages, messages); err != nil {
		return domain.DirectMessage{}, err
	}
	return msg, nil
}

// Conversation returns every message between the unordered pair {a, b},
// oldest first.
func (s *Service) Conversation(ctx context.Context, a, b string) ([]domain.DirectMessage, error) {
	messages, err := store.GetList[domain.DirectMessage](ctx, s.kv, store.KeyMessages)
	if err != nil {
		return nil, err
	}
	var conversation []domain.DirectMessage
	for _, m := range messages {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			conversation = append(conversation, m)
		}
	}
	sort.SliceStable(conversation, func(i, j int) bool {
		return conversation[i].Date.Before(conversation[j].Date)
	})
	return conversation, nil
}
