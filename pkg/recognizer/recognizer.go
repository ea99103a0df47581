package recognizer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
)

// Placeholder stands in for a transcript that could not be produced.
const Placeholder = "(transcription unavailable)"

// TranscriptionError wraps a failure reading or transcribing a recording.
type TranscriptionError struct {
	Provider Vendor
	Path     string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("%s transcription of %s: %v", e.Provider, e.Path, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// TranscribeService 将一段录音转写为文本
type TranscribeService interface {
	Provider() Vendor
	Transcribe(ctx context.Context, artifact *media.Artifact) (string, error)
	Close() error
}

// Config selects and configures the STT backend.
type Config struct {
	Provider Vendor        `env:"STT_PROVIDER"`
	Language string        `env:"STT_LANGUAGE"`
	Timeout  time.Duration `env:"STT_TIMEOUT"`
	OpenAI   WhisperConfig
	Google   GoogleConfig
}

// GetVendor 实现 TranscriberConfig
func (c *Config) GetVendor() Vendor {
	if c.Provider == "" {
		return VendorNone
	}
	return c.Provider
}

// readable checks the artifact before any provider is contacted.
func readable(provider Vendor, artifact *media.Artifact) error {
	if artifact == nil {
		return &TranscriptionError{Provider: provider, Err: os.ErrNotExist}
	}
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return &TranscriptionError{Provider: provider, Path: artifact.Path, Err: err}
	}
	if info.Size() == 0 {
		return &TranscriptionError{Provider: provider, Path: artifact.Path, Err: fmt.Errorf("empty file")}
	}
	return nil
}
