package content

import (
	"context"
	"strings"
	"time"

	"studentsphere/internal/util"
	"studentsphere/pkg/domain"
	"studentsphere/pkg/storage"
	"studentsphere/pkg/store"
)

// DefaultInlineLimit caps the encoded payload kept inline in the store.
// Inherited from the original deployment's storage capacity; tune via config.
const DefaultInlineLimit = 5 * 1024 * 1024

const presignExpiry = 15 * time.Minute

// Config wires the content repository.
type Config struct {
	KV store.KV
	// InlineLimitBytes caps the encoded payload size; 0 means DefaultInlineLimit.
	InlineLimitBytes int
	// Archive, when set, captures payloads over the ceiling out of line.
	Archive storage.ObjectStore
}

// Service manages the per-teacher upload collection.
type Service struct {
	kv      store.KV
	limit   int
	archive storage.ObjectStore
	now     func() time.Time
}

// New constructs the content repository.
func New(cfg Config) *Service {
	limit := cfg.InlineLimitBytes
	if limit <= 0 {
		limit = DefaultInlineLimit
	}
	return &Service{
		kv:      cfg.KV,
		limit:   limit,
		archive: cfg.Archive,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new file under the teacher's partition. Payloads over
// the inline ceiling are accepted but kept as metadata only; when an
// archive is configured the oversized payload is captured there instead
// of being dropped.
func (s *Service) Upload(ctx context.Context, teacher domain.User, name string, declared domain.UploadType, payload string) (domain.Upload, error) {
	if strings.TrimSpace(payload) == "" {
		return domain.Upload{}, ErrPayloadRequired
	}
	if _, err := decodeDataURI(payload); err != nil {
		return domain.Upload{}, err
	}

	up := domain.Upload{
		ID:        util.NewID(),
		TeacherID: teacher.DashboardID,
		Name:      strings.TrimSpace(name),
		Type:      sniffType(declared, name, payload),
		Date:      s.now(),
	}
	if up.Type == domain.TypePDF {
		up.Pages = pdfPageCount(payload)
	}

	if len(payload) > s.limit {
		up.IsSimulated = true
		if s.archive != nil {
			if key, err := s.archivePayload(ctx, up.ID, payload); err == nil {
				up.StorageKey = key
			} else {
				util.LoggerFromContext(ctx).Warn("archive upload failed", "upload_id", up.ID, "err", err)
			}
		}
	} else {
		up.Data = &payload
	}

	uploads, err := store.GetList[domain.Upload](ctx, s.kv, store.KeyUploads)
	if err != nil {
		return domain.Upload{}, err
	}
	uploads = append(uploads, up)
	if err := store.PutList(ctx, s.kv, store.KeyUploads, uploads); err != nil {
		return domain.Upload{}, err
	}
	return up, nil
}

// List returns the partition's uploads in insertion order.
func (s *Service) List(ctx context.Context, partitionKey string) ([]domain.Upload, error) {
	uploads, err := store.GetList[domain.Upload](ctx, s.kv, store.KeyUploads)
	if err != nil {
		return nil, err
	}
	var mine []domain.Upload
	for _, up := range uploads {
		if up.TeacherID == partitionKey {
			mine = append(mine, up)
		}
	}
	return mine, nil
}

// View returns an upload for display. For archived payloads the returned
// URL is a presigned download link; for simulated uploads with no archived
// copy the content is gone and the call fails.
func (s *Service) View(ctx context.Context, id string) (domain.Upload, string, error) {
	uploads, err := store.GetList[domain.Upload](ctx, s.kv, store.KeyUploads)
	if err != nil {
		return domain.Upload{}, "", err
	}
	for _, up := range uploads {
		if up.ID != id {
			continue
		}
		if up.Data != nil {
			return up, "", nil
		}
		if up.StorageKey != "" && s.archive != nil {
			url, err := s.archive.DownloadURL(ctx, up.StorageKey, presignExpiry)
			if err != nil {
				return domain.Upload{}, "", ErrContentUnavailable
			}
			return up, url, nil
		}
		return domain.Upload{}, "", ErrContentUnavailable
	}
	return domain.Upload{}, "", ErrUploadNotFound
}

// Delete removes an upload. Only the owning teacher may delete; a foreign
// ID behaves as if the upload did not exist.
func (s *Service) Delete(ctx context.Context, teacher domain.User, id string) error {
	uploads, err := store.GetList[domain.Upload](ctx, s.kv, store.KeyUploads)
	if err != nil {
		return err
	}
	for i, up := range uploads {
		if up.ID != id || up.TeacherID != teacher.DashboardID {
			continue
		}
		if up.StorageKey != "" && s.archive != nil {
			if err := s.archive.Discard(ctx, up.StorageKey); err != nil {
				util.LoggerFromContext(ctx).Warn("delete archived payload failed", "upload_id", id, "err", err)
			}
		}
		uploads = append(uploads[:i], uploads[i+1:]...)
		return store.PutList(ctx, s.kv, store.KeyUploads, uploads)
	}
	return ErrUploadNotFound
}

func (s *Service) archivePayload(ctx context.Context, id, payload string) (string, error) {
	data, err := decodeDataURI(payload)
	if err != nil {
		return "", err
	}
	contentType := dataURIMediaType(payload)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.archive.ArchiveUpload(ctx, id, data, contentType)
}
