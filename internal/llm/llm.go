package llm

import (
	"context"
	"errors"
)

// VisionModel abstracts a remote vision/language model that answers an
// instruction about a single inline image with free text.
type VisionModel interface {
	Describe(ctx context.Context, req VisionRequest) (string, error)
}

// VisionRequest carries one instruction and one inline image.
type VisionRequest struct {
	Instruction string
	Image       []byte
	MimeType    string
}

// DefaultMimeType is used when a request does not name one.
const DefaultMimeType = "image/jpeg"

// ErrNotConfigured is returned by the placeholder model when no provider is configured.
var ErrNotConfigured = errors.New("vision model not configured")

// PlaceholderVisionModel stands in when LLM_PROVIDER=none or credentials are missing.
type PlaceholderVisionModel struct{}

// Describe returns ErrNotConfigured.
func (PlaceholderVisionModel) Describe(ctx context.Context, req VisionRequest) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotConfigured
}

// MimeTypeOrDefault returns the request MIME type, falling back to DefaultMimeType.
func (r VisionRequest) MimeTypeOrDefault() string {
	if r.MimeType == "" {
		return DefaultMimeType
	}
	return r.MimeType
}
