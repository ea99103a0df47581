package synthesizer

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GoogleConfig Google Cloud TTS 配置
type GoogleConfig struct {
	CredentialsFile string  `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	LanguageCode    string  `env:"GOOGLE_TTS_LANGUAGE"`
	VoiceName       string  `env:"GOOGLE_TTS_VOICE"`
	SpeakingRate    float64 `env:"GOOGLE_TTS_SPEAKING_RATE"`
}

// GoogleService dials the API on first use so a missing credential only
// fails the greeting, not startup.
type GoogleService struct {
	opt       GoogleConfig
	outputDir string

	mu     sync.Mutex
	client *texttospeech.Client
}

func NewGoogleService(opt GoogleConfig, outputDir string) *GoogleService {
	if opt.LanguageCode == "" {
		opt.LanguageCode = "en-US"
	}
	return &GoogleService{opt: opt, outputDir: outputDir}
}

func (g *GoogleService) Provider() Vendor {
	return VendorGoogle
}

func (g *GoogleService) CacheKey(text string) string {
	return "google-" + digest(g.opt.LanguageCode, g.opt.VoiceName, fmt.Sprint(g.opt.SpeakingRate), text)
}

func (g *GoogleService) getClient(ctx context.Context) (*texttospeech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	var opts []option.ClientOption
	if g.opt.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.opt.CredentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

func (g *GoogleService) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, &SynthesisError{Provider: VendorGoogle, Message: "create client", Err: err}
	}
	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.opt.LanguageCode,
			Name:         g.opt.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			// LINEAR16 responses carry a WAV header
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: media.TelephonySampleRate,
			SpeakingRate:    g.opt.SpeakingRate,
		},
	})
	if err != nil {
		logrus.WithError(err).Error("google tts: request failed")
		return nil, &SynthesisError{Provider: VendorGoogle, Message: "synthesize speech", Err: err}
	}

	path, err := writeFile(g.outputDir, g.CacheKey(text)+".wav", bytes.NewReader(resp.GetAudioContent()))
	if err != nil {
		return nil, &SynthesisError{Provider: VendorGoogle, Message: "write audio", Err: err}
	}
	artifact, err := media.NewArtifact(path, media.KindGreeting)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"provider":   "google",
		"language":   g.opt.LanguageCode,
		"audio_size": artifact.Size,
	}).Info("google tts: synthesis completed")
	return artifact, nil
}

func (g *GoogleService) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
