package content

import (
	"encoding/base64"
	"testing"

	"studentsphere/pkg/domain"
)

func TestSniffTypeFromMediaType(t *testing.T) {
	cases := []struct {
		declared domain.UploadType
		name     string
		media    string
		want     domain.UploadType
	}{
		{domain.TypeFile, "clip", "video/webm", domain.TypeVideo},
		{domain.TypePDF, "photo", "image/png", domain.TypeImage},
		{domain.TypeFile, "doc", "application/pdf", domain.TypePDF},
		{domain.TypeFile, "archive.zip", "application/zip", domain.TypeFile},
		{"", "mystery.bin", "application/octet-stream", domain.TypeFile},
	}
	for _, c := range cases {
		payload := "data:" + c.media + ";base64," + base64.StdEncoding.EncodeToString([]byte("content"))
		if got := sniffType(c.declared, c.name, payload); got != c.want {
			t.Fatalf("sniffType(%q, %q, %q) = %q, want %q", c.declared, c.name, c.media, got, c.want)
		}
	}
}

func TestSniffTypeFallsBackToExtension(t *testing.T) {
	payload := "data:;base64," + base64.StdEncoding.EncodeToString([]byte("content"))
	if got := sniffType(domain.TypeFile, "holiday.JPG", payload); got != domain.TypeImage {
		t.Fatalf("expected image from extension, got %q", got)
	}
	if got := sniffType(domain.TypeFile, "lecture.mov", payload); got != domain.TypeVideo {
		t.Fatalf("expected video from extension, got %q", got)
	}
}

func TestDataURIMediaType(t *testing.T) {
	if got := dataURIMediaType("data:Image/PNG;base64,xxxx"); got != "image/png" {
		t.Fatalf("unexpected media type: %q", got)
	}
	if got := dataURIMediaType("not a data uri"); got != "" {
		t.Fatalf("expected empty for plain text, got %q", got)
	}
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	if _, err := decodeDataURI("data:image/png;base64,!!!"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeDataURI("nope"); err == nil {
		t.Fatalf("expected error for non data URI")
	}
}
