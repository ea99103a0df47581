package synthesizer

import (
	"context"

	"github.com/code-100-precent/LingLine/pkg/media"
)

// None is the backend used when no TTS is configured.
type None struct{}

func NewNone() *None { return &None{} }

func (None) Provider() Vendor { return VendorNone }

func (None) CacheKey(string) string { return "" }

func (None) Synthesize(context.Context, string) (*media.Artifact, error) {
	return nil, ErrSynthesisUnavailable
}

func (None) Close() error { return nil }
