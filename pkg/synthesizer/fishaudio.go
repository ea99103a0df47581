package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const fishAudioBaseURL = "https://api.fish.audio"

// FishAudioConfig Fish Audio TTS 配置
type FishAudioConfig struct {
	APIKey      string  `json:"api_key" env:"FISHAUDIO_API_KEY"`
	BaseURL     string  `json:"base_url" env:"FISHAUDIO_BASE_URL"`
	ReferenceID string  `json:"reference_id" env:"FISHAUDIO_REFERENCE_ID"` // 模型ID
	Model       string  `json:"model" env:"FISHAUDIO_MODEL"`               // 模型版本: s1, speech-1.6, speech-1.5
	SampleRate  int     `json:"sample_rate"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Latency     string  `json:"latency"` // low, normal, balanced
	ChunkLength int     `json:"chunk_length"`
	Normalize   bool    `json:"normalize"`
	Timeout     time.Duration
}

// NewFishAudioConfig 创建 Fish Audio TTS 配置
func NewFishAudioConfig(apiKey, referenceID string) FishAudioConfig {
	return FishAudioConfig{
		APIKey:      apiKey,
		BaseURL:     fishAudioBaseURL,
		ReferenceID: referenceID,
		Model:       "s1",
		SampleRate:  media.TelephonySampleRate,
		Temperature: 0.7,
		TopP:        0.7,
		Latency:     "normal",
		ChunkLength: 300,
		Normalize:   true,
		Timeout:     30 * time.Second,
	}
}

// FishAudioRequest Fish Audio TTS 请求
type FishAudioRequest struct {
	Text        string  `json:"text"`
	ReferenceID string  `json:"reference_id,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate,omitempty"`
	ChunkLength int     `json:"chunk_length,omitempty"`
	Normalize   bool    `json:"normalize"`
	Latency     string  `json:"latency,omitempty"`
}

type FishAudioService struct {
	opt       FishAudioConfig
	outputDir string
	client    *resty.Client
	mu        sync.Mutex
}

// NewFishAudioService 创建 Fish Audio TTS 服务
func NewFishAudioService(opt FishAudioConfig, outputDir string) (*FishAudioService, error) {
	if opt.APIKey == "" {
		return nil, errors.New("FISHAUDIO_API_KEY is required")
	}
	defaults := NewFishAudioConfig(opt.APIKey, opt.ReferenceID)
	if opt.BaseURL == "" {
		opt.BaseURL = defaults.BaseURL
	}
	if opt.Model == "" {
		opt.Model = defaults.Model
	}
	if opt.SampleRate <= 0 {
		opt.SampleRate = defaults.SampleRate
	}
	if opt.Timeout <= 0 {
		opt.Timeout = defaults.Timeout
	}
	client := resty.New().
		SetBaseURL(opt.BaseURL).
		SetAuthToken(opt.APIKey).
		SetHeader("model", opt.Model).
		SetTimeout(opt.Timeout)
	return &FishAudioService{opt: opt, outputDir: outputDir, client: client}, nil
}

func (fa *FishAudioService) Provider() Vendor {
	return VendorFishAudio
}

func (fa *FishAudioService) CacheKey(text string) string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fmt.Sprintf("fishaudio-%s", digest(fa.opt.Model, fa.opt.ReferenceID, fmt.Sprint(fa.opt.SampleRate), text))
}

func (fa *FishAudioService) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	fa.mu.Lock()
	opt := fa.opt
	fa.mu.Unlock()

	resp, err := fa.client.R().
		SetContext(ctx).
		SetBody(FishAudioRequest{
			Text:        text,
			ReferenceID: opt.ReferenceID,
			Temperature: opt.Temperature,
			TopP:        opt.TopP,
			Format:      "wav",
			SampleRate:  opt.SampleRate,
			ChunkLength: opt.ChunkLength,
			Normalize:   opt.Normalize,
			Latency:     opt.Latency,
		}).
		SetDoNotParseResponse(true).
		Post("/v1/tts")
	if err != nil {
		logrus.WithError(err).Error("failed to call Fish Audio API")
		return nil, &SynthesisError{Provider: VendorFishAudio, Message: "request failed", Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		logrus.WithFields(logrus.Fields{
			"status_code": resp.StatusCode(),
			"body":        string(msg),
		}).Error("Fish Audio API error")
		return nil, &SynthesisError{
			Provider: VendorFishAudio,
			Message:  fmt.Sprintf("status %d: %s", resp.StatusCode(), msg),
		}
	}

	path, err := writeFile(fa.outputDir, fa.CacheKey(text)+".wav", body)
	if err != nil {
		return nil, &SynthesisError{Provider: VendorFishAudio, Message: "write audio", Err: err}
	}
	artifact, err := media.NewArtifact(path, media.KindGreeting)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"provider":   "fishaudio",
		"model":      opt.Model,
		"text":       text,
		"audio_size": artifact.Size,
	}).Info("fishaudio tts: synthesis completed")
	return artifact, nil
}

func (fa *FishAudioService) Close() error {
	return nil
}
