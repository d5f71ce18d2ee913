package enums

import (
	"fmt"
	"strings"
)

// ContentType is the coarse delivery category derived from a mime type.
type ContentType string

const (
	ContentTypeVideo    ContentType = "video"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeImage    ContentType = "image"
	ContentTypeDocument ContentType = "document"
)

var validContentTypes = []ContentType{
	ContentTypeVideo,
	ContentTypeAudio,
	ContentTypeImage,
	ContentTypeDocument,
}

// String returns the literal string for the type.
func (c ContentType) String() string {
	return string(c)
}

// IsValid reports whether the type is known.
func (c ContentType) IsValid() bool {
	for _, candidate := range validContentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContentType converts raw input into a ContentType.
func ParseContentType(value string) (ContentType, error) {
	for _, candidate := range validContentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content type %q", value)
}

// ClassifyMime maps a mime type onto the closed content-type set. Everything
// that is not video, audio, or image renders as a document. This is the single
// classification point; call sites must not re-derive categories from mime
// prefixes themselves.
func ClassifyMime(mimeType string) ContentType {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mime, "video/"):
		return ContentTypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return ContentTypeAudio
	case strings.HasPrefix(mime, "image/"):
		return ContentTypeImage
	default:
		return ContentTypeDocument
	}
}
