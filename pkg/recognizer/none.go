package recognizer

import (
	"context"

	"github.com/code-100-precent/LingLine/pkg/media"
)

// None is used when no STT backend is configured; it always yields the placeholder.
type None struct{}

func NewNone() *None { return &None{} }

func (None) Provider() Vendor { return VendorNone }

func (None) Transcribe(context.Context, *media.Artifact) (string, error) {
	return Placeholder, nil
}

func (None) Close() error { return nil }
