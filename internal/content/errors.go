package content

import "errors"

var (
	// ErrContentUnavailable is the user-facing failure for viewing an
	// upload whose payload was dropped at the inline ceiling.
	ErrContentUnavailable = errors.New("content unavailable (too large or old)")

	ErrUploadNotFound  = errors.New("file not found")
	ErrPayloadRequired = errors.New("please select a file")
	ErrBadPayload      = errors.New("payload must be a base64 data URI")
)
