package recognizer

import (
	"context"
	"errors"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// WhisperConfig OpenAI Whisper 配置
type WhisperConfig struct {
	APIKey   string `env:"OPENAI_API_KEY"`
	BaseURL  string `env:"OPENAI_BASE_URL"`
	Model    string `env:"OPENAI_STT_MODEL"`
	Language string
	Prompt   string `env:"OPENAI_STT_PROMPT"`
}

type WhisperASR struct {
	opt    WhisperConfig
	client *openai.Client
}

func NewWhisperASR(opt WhisperConfig) (*WhisperASR, error) {
	if opt.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if opt.Model == "" {
		opt.Model = openai.Whisper1
	}
	cfg := openai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		cfg.BaseURL = opt.BaseURL
	}
	return &WhisperASR{opt: opt, client: openai.NewClientWithConfig(cfg)}, nil
}

func (w *WhisperASR) Provider() Vendor {
	return VendorOpenAI
}

func (w *WhisperASR) Transcribe(ctx context.Context, artifact *media.Artifact) (string, error) {
	if err := readable(VendorOpenAI, artifact); err != nil {
		return "", err
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.opt.Model,
		FilePath: artifact.Path,
		Language: w.opt.Language,
		Prompt:   w.opt.Prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		logrus.WithError(err).WithField("path", artifact.Path).Error("whisper transcription failed")
		return "", &TranscriptionError{Provider: VendorOpenAI, Path: artifact.Path, Err: err}
	}
	text := strings.TrimSpace(resp.Text)
	logrus.WithFields(logrus.Fields{
		"provider": "openai",
		"path":     artifact.Path,
		"chars":    len(text),
	}).Info("whisper transcription completed")
	return text, nil
}

func (w *WhisperASR) Close() error {
	return nil
}
