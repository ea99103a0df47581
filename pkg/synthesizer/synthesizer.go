package synthesizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
)

// Vendor 供应商类型
type Vendor string

const (
	VendorNone      Vendor = "none"
	VendorOpenAI    Vendor = "openai"
	VendorGoogle    Vendor = "google"
	VendorFishAudio Vendor = "fishaudio"
	VendorLocal     Vendor = "local"
)

// ErrSynthesisUnavailable is returned when no TTS backend is configured.
var ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

// SynthesisError carries the upstream provider's failure.
type SynthesisError struct {
	Provider Vendor
	Message  string
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s tts: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s tts: %s", e.Provider, e.Message)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Synthesizer turns text into an audio file playable by the SIP agent.
type Synthesizer interface {
	Provider() Vendor
	// CacheKey is stable for the same text and voice settings.
	CacheKey(text string) string
	Synthesize(ctx context.Context, text string) (*media.Artifact, error)
	Close() error
}

// Config selects and configures the TTS backend.
type Config struct {
	Provider  Vendor          `env:"TTS_PROVIDER"`
	OutputDir string          `env:"TTS_OUTPUT_DIR"`
	Timeout   time.Duration   `env:"TTS_TIMEOUT"`
	CacheTTL  time.Duration   `env:"TTS_CACHE_TTL"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Google    GoogleConfig    `mapstructure:"google"`
	FishAudio FishAudioConfig `mapstructure:"fishaudio"`
	Local     LocalConfig     `mapstructure:"local"`
}

// digest is a short content hash used in cache keys and file names.
func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// writeFile streams r into dir/name through a temp file so a half-written
// greeting is never visible under its final name.
func writeFile(dir, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".tts-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", errors.New("empty audio data")
	}
	final := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", err
	}
	return final, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
