package content

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"studentsphere/pkg/domain"
)

const dataURIPrefix = "data:"

// sniffType reconciles the declared upload type with what the payload
// actually is. Detection looks at the data URI media type, the filename
// extension, and the decoded content head; a detected type always wins
// over the declared one.
func sniffType(declared domain.UploadType, name, payload string) domain.UploadType {
	mediaType := dataURIMediaType(payload)
	if mediaType == "" {
		if head, err := decodeDataURI(payload); err == nil && len(head) > 0 {
			mediaType = strings.ToLower(http.DetectContentType(head))
		}
	}
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case strings.HasPrefix(mediaType, "video/"),
		ext == ".mp4", ext == ".webm", ext == ".mov", ext == ".avi":
		return domain.TypeVideo
	case strings.HasPrefix(mediaType, "image/"),
		ext == ".jpg", ext == ".jpeg", ext == ".png", ext == ".gif", ext == ".webp":
		return domain.TypeImage
	case mediaType == "application/pdf", ext == ".pdf":
		return domain.TypePDF
	}
	if declared == "" {
		return domain.TypeFile
	}
	return declared
}

// pdfPageCount returns the page count of an inline PDF payload, or 0 when
// the payload cannot be parsed. The pdf library panics on some malformed
// files, so parsing is fenced off.
func pdfPageCount(payload string) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	data, err := decodeDataURI(payload)
	if err != nil || len(data) == 0 {
		return 0
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}

// dataURIMediaType extracts the media type from a "data:<type>;base64,"
// prefix, lowercased. Empty when the payload is not a data URI.
func dataURIMediaType(payload string) string {
	if !strings.HasPrefix(payload, dataURIPrefix) {
		return ""
	}
	rest := payload[len(dataURIPrefix):]
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(rest[:end]))
}

// decodeDataURI returns the decoded bytes of a base64 data URI.
func decodeDataURI(payload string) ([]byte, error) {
	comma := strings.IndexByte(payload, ',')
	if !strings.HasPrefix(payload, dataURIPrefix) || comma < 0 {
		return nil, ErrBadPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload[comma+1:])
	if err != nil {
		return nil, ErrBadPayload
	}
	return data, nil
}
