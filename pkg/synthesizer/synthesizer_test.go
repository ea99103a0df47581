package synthesizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSynthesizer struct {
	dir   string
	calls atomic.Int32
}

func (c *countingSynthesizer) Provider() Vendor            { return "counting" }
func (c *countingSynthesizer) CacheKey(text string) string { return "counting-" + digest(text) }
func (c *countingSynthesizer) Close() error                { return nil }

func (c *countingSynthesizer) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	c.calls.Add(1)
	path := filepath.Join(c.dir, c.CacheKey(text)+".wav")
	if err := media.WriteWAV(path, media.Silence(100*time.Millisecond, media.TelephonySampleRate), media.TelephonySampleRate); err != nil {
		return nil, err
	}
	return media.NewArtifact(path, media.KindGreeting)
}

func TestNoneIsUnavailable(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, VendorNone, s.Provider())

	_, err = s.Synthesize(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrSynthesisUnavailable))
}

func TestFactoryUnknownVendor(t *testing.T) {
	_, err := New(Config{Provider: "polly"})
	assert.Error(t, err)
}

func TestFactoryRegister(t *testing.T) {
	f := NewFactory()
	fake := &countingSynthesizer{dir: t.TempDir()}
	f.Register("counting", func(Config) (Synthesizer, error) { return fake, nil })

	assert.Contains(t, f.SupportedVendors(), Vendor("counting"))
	assert.Contains(t, f.SupportedVendors(), VendorOpenAI)

	s, err := f.Create(Config{Provider: "counting", CacheTTL: time.Minute, Timeout: time.Second})
	require.NoError(t, err)
	_, err = s.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	_, err = s.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestFactoryVendorCreateError(t *testing.T) {
	_, err := New(Config{Provider: VendorOpenAI})
	assert.Error(t, err)
}

func TestCachedResynthesizesMissingFile(t *testing.T) {
	fake := &countingSynthesizer{dir: t.TempDir()}
	c := NewCached(fake, time.Minute)

	a, err := c.Synthesize(context.Background(), "welcome")
	require.NoError(t, err)
	_, err = c.Synthesize(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, os.Remove(a.Path))
	_, err = c.Synthesize(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.calls.Load())

	_, err = c.Synthesize(context.Background(), "goodbye")
	require.NoError(t, err)
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestOpenAISynthesize(t *testing.T) {
	audio := wavBytes(t, 250*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(audio)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s, err := NewOpenAIService(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, dir)
	require.NoError(t, err)

	artifact, err := s.Synthesize(context.Background(), "Please leave a message")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, artifact.Actual)
	assert.Equal(t, dir, filepath.Dir(artifact.Path))
}

func TestOpenAISynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	s, err := NewOpenAIService(OpenAIConfig{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"}, t.TempDir())
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "hello")
	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, VendorOpenAI, synthErr.Provider)
	assert.Equal(t, "invalid api key", synthErr.Message)
}

func TestWriteFileRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := writeFile(dir, "empty.wav", strings.NewReader(""))
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "empty.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalCustomCommand(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(t.TempDir(), "fixture.wav")
	require.NoError(t, media.WriteWAV(fixture, media.Silence(time.Second, media.TelephonySampleRate), media.TelephonySampleRate))

	s, err := NewLocalService(LocalConfig{Command: "test -n %s && cp " + fixture + " %s"}, dir)
	require.NoError(t, err)

	artifact, err := s.Synthesize(context.Background(), "it's me")
	require.NoError(t, err)
	assert.Equal(t, time.Second, artifact.Actual)

	bad, err := NewLocalService(LocalConfig{Command: "exit 3 # %s %s"}, dir)
	require.NoError(t, err)
	_, err = bad.Synthesize(context.Background(), "x")
	var synthErr *SynthesisError
	assert.True(t, errors.As(err, &synthErr))
}
