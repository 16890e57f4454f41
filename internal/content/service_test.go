package content

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"studentsphere/pkg/domain"
	"studentsphere/pkg/store"
)

const teacherID = "123456789012"

var teacher = domain.User{Username: "mr-kofi", Role: domain.RoleTeacher, DashboardID: teacherID}

func dataURI(mediaType string, raw []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func newTestService(limit int) *Service {
	return New(Config{KV: store.NewMemoryKV(), InlineLimitBytes: limit})
}

func TestUploadInlinePayload(t *testing.T) {
	s := newTestService(0)
	up, err := s.Upload(context.Background(), teacher, "cells.png", domain.TypeImage, dataURI("image/png", []byte("png-bytes")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.IsSimulated || up.Data == nil {
		t.Fatalf("expected inline payload, got %+v", up)
	}
	if up.TeacherID != teacherID {
		t.Fatalf("wrong partition: %q", up.TeacherID)
	}

	got, url, err := s.View(context.Background(), up.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if url != "" || got.Data == nil {
		t.Fatalf("expected inline view, got url=%q", url)
	}
}

func TestUploadOverCeilingKeepsMetadataOnly(t *testing.T) {
	s := newTestService(1024)
	big := dataURI("video/mp4", []byte(strings.Repeat("x", 4096)))

	up, err := s.Upload(context.Background(), teacher, "lecture.mp4", domain.TypeVideo, big)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !up.IsSimulated {
		t.Fatalf("expected simulated upload")
	}
	if up.Data != nil {
		t.Fatalf("expected data dropped")
	}
	if up.Name != "lecture.mp4" || up.Type != domain.TypeVideo {
		t.Fatalf("metadata lost: %+v", up)
	}

	if _, _, err := s.View(context.Background(), up.ID); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestSniffedTypeWinsOverDeclared(t *testing.T) {
	s := newTestService(0)
	up, err := s.Upload(context.Background(), teacher, "photo.jpg", domain.TypeFile, dataURI("image/jpeg", []byte("jpeg")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.Type != domain.TypeImage {
		t.Fatalf("expected image, got %q", up.Type)
	}
}

func TestListFiltersByPartition(t *testing.T) {
	s := newTestService(0)
	other := domain.User{Username: "ms-ama", Role: domain.RoleTeacher, DashboardID: "210987654321"}

	if _, err := s.Upload(context.Background(), teacher, "a.pdf", domain.TypePDF, dataURI("application/pdf", []byte("%PDF-1.4"))); err != nil {
		t.Fatalf("upload a: %v", err)
	}
	if _, err := s.Upload(context.Background(), other, "b.pdf", domain.TypePDF, dataURI("application/pdf", []byte("%PDF-1.4"))); err != nil {
		t.Fatalf("upload b: %v", err)
	}

	mine, err := s.List(context.Background(), teacherID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "a.pdf" {
		t.Fatalf("expected only own uploads, got %+v", mine)
	}
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	s := newTestService(0)
	other := domain.User{Username: "ms-ama", Role: domain.RoleTeacher, DashboardID: "210987654321"}

	up, err := s.Upload(context.Background(), teacher, "notes.pdf", domain.TypePDF, dataURI("application/pdf", []byte("%PDF-1.4")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := s.Delete(context.Background(), other, up.ID); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected foreign delete to fail, got %v", err)
	}
	if err := s.Delete(context.Background(), teacher, up.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, _, err := s.View(context.Background(), up.ID); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected gone after delete, got %v", err)
	}
}

func TestUploadRejectsMissingPayload(t *testing.T) {
	s := newTestService(0)
	if _, err := s.Upload(context.Background(), teacher, "x", domain.TypeFile, "  "); !errors.Is(err, ErrPayloadRequired) {
		t.Fatalf("expected ErrPayloadRequired, got %v", err)
	}
	if _, err := s.Upload(context.Background(), teacher, "x", domain.TypeFile, "plain text"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}
}

type stubArchive struct {
	objects   map[string][]byte
	discarded []string
}

func (a *stubArchive) ArchiveUpload(_ context.Context, uploadID string, data []byte, _ string) (string, error) {
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	key := "uploads/" + uploadID
	a.objects[key] = data
	return key, nil
}

func (a *stubArchive) DownloadURL(_ context.Context, storageKey string, _ time.Duration) (string, error) {
	if _, ok := a.objects[storageKey]; !ok {
		return "", errors.New("no such object")
	}
	return "https://archive.test/" + storageKey, nil
}

func (a *stubArchive) Discard(_ context.Context, storageKey string) error {
	delete(a.objects, storageKey)
	a.discarded = append(a.discarded, storageKey)
	return nil
}

func TestOversizedUploadServedFromArchive(t *testing.T) {
	arch := &stubArchive{}
	s := New(Config{KV: store.NewMemoryKV(), InlineLimitBytes: 1024, Archive: arch})

	big := dataURI("video/mp4", []byte(strings.Repeat("x", 4096)))
	up, err := s.Upload(context.Background(), teacher, "lab.mp4", domain.TypeVideo, big)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !up.IsSimulated || up.Data != nil {
		t.Fatalf("expected metadata-only record, got %+v", up)
	}
	if up.StorageKey == "" {
		t.Fatal("oversized payload not archived")
	}

	_, url, err := s.View(context.Background(), up.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if url == "" {
		t.Fatal("expected a download URL for the archived payload")
	}

	if err := s.Delete(context.Background(), teacher, up.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(arch.discarded) != 1 || arch.discarded[0] != up.StorageKey {
		t.Fatalf("archived payload not discarded: %v", arch.discarded)
	}
}
