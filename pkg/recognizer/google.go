package recognizer

import (
	"context"
	"os"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GoogleConfig Google Cloud Speech 配置
type GoogleConfig struct {
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	LanguageCode    string
	Model           string `env:"GOOGLE_STT_MODEL"` // phone_call, default ...
}

type GoogleASR struct {
	opt GoogleConfig

	mu     sync.Mutex
	client *speech.Client
}

func NewGoogleASR(opt GoogleConfig) *GoogleASR {
	if opt.LanguageCode == "" {
		opt.LanguageCode = "en-US"
	}
	if opt.Model == "" {
		opt.Model = "phone_call"
	}
	return &GoogleASR{opt: opt}
}

func (g *GoogleASR) Provider() Vendor {
	return VendorGoogle
}

func (g *GoogleASR) getClient(ctx context.Context) (*speech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	var opts []option.ClientOption
	if g.opt.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.opt.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// buildConfig 根据录音头信息构造识别配置
func (g *GoogleASR) buildConfig(format media.StreamFormat) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:          speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:   int32(format.SampleRate),
		AudioChannelCount: int32(format.Channels),
		LanguageCode:      g.opt.LanguageCode,
		Model:             g.opt.Model,
	}
}

func (g *GoogleASR) Transcribe(ctx context.Context, artifact *media.Artifact) (string, error) {
	if err := readable(VendorGoogle, artifact); err != nil {
		return "", err
	}
	format, err := media.WAVFormat(artifact.Path)
	if err != nil {
		return "", &TranscriptionError{Provider: VendorGoogle, Path: artifact.Path, Err: err}
	}
	content, err := os.ReadFile(artifact.Path)
	if err != nil {
		return "", &TranscriptionError{Provider: VendorGoogle, Path: artifact.Path, Err: err}
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return "", &TranscriptionError{Provider: VendorGoogle, Path: artifact.Path, Err: err}
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: g.buildConfig(format),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		logrus.WithError(err).WithField("path", artifact.Path).Error("google transcription failed")
		return "", &TranscriptionError{Provider: VendorGoogle, Path: artifact.Path, Err: err}
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	text := strings.Join(parts, " ")
	logrus.WithFields(logrus.Fields{
		"provider": "google",
		"path":     artifact.Path,
		"chars":    len(text),
	}).Info("google transcription completed")
	return text, nil
}

func (g *GoogleASR) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
