package synthesizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIConfig OpenAI TTS 配置
type OpenAIConfig struct {
	APIKey  string  `env:"OPENAI_API_KEY"`
	BaseURL string  `env:"OPENAI_BASE_URL"`
	Model   string  `env:"OPENAI_TTS_MODEL"`
	Voice   string  `env:"OPENAI_TTS_VOICE"`
	Speed   float64 `env:"OPENAI_TTS_SPEED"`
}

type OpenAIService struct {
	opt       OpenAIConfig
	outputDir string
	client    *openai.Client
}

func NewOpenAIService(opt OpenAIConfig, outputDir string) (*OpenAIService, error) {
	if opt.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if opt.Model == "" {
		opt.Model = string(openai.TTSModel1)
	}
	if opt.Voice == "" {
		opt.Voice = string(openai.VoiceAlloy)
	}
	cfg := openai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		cfg.BaseURL = opt.BaseURL
	}
	return &OpenAIService{
		opt:       opt,
		outputDir: outputDir,
		client:    openai.NewClientWithConfig(cfg),
	}, nil
}

func (o *OpenAIService) Provider() Vendor {
	return VendorOpenAI
}

func (o *OpenAIService) CacheKey(text string) string {
	return "openai-" + digest(o.opt.Model, o.opt.Voice, fmt.Sprint(o.opt.Speed), text)
}

func (o *OpenAIService) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.opt.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.opt.Voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          o.opt.Speed,
	})
	if err != nil {
		msg := "create speech"
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		logrus.WithError(err).Error("openai tts: request failed")
		return nil, &SynthesisError{Provider: VendorOpenAI, Message: msg, Err: err}
	}
	defer resp.Close()

	path, err := writeFile(o.outputDir, o.CacheKey(text)+".wav", resp)
	if err != nil {
		return nil, &SynthesisError{Provider: VendorOpenAI, Message: "write audio", Err: err}
	}
	artifact, err := media.NewArtifact(path, media.KindGreeting)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"provider":   "openai",
		"model":      o.opt.Model,
		"voice":      o.opt.Voice,
		"audio_size": artifact.Size,
	}).Info("openai tts: synthesis completed")
	return artifact, nil
}

func (o *OpenAIService) Close() error {
	return nil
}
