package config

import (
	"errors"
	"testing"
	"time"

	"github.com/code-100-precent/LingLine/pkg/synthesizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 为了避免不同用例间互相污染，统一用 t.Setenv 设置环境变量
func setAllEnvs(t *testing.T) {
	t.Setenv("APP_ENV", "test-does-not-exist")
	t.Setenv("ADDR", ":9090")
	t.Setenv("MODE", "development")
	t.Setenv("API_PREFIX", "/v1")
	t.Setenv("AUDIO_DIR", "/var/lingline")

	// 日志
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILENAME", "app.log")
	t.Setenv("LOG_MAX_SIZE", "128")

	// SIP
	t.Setenv("SIP_IDENTITY", "sip:100@pbx.local")
	t.Setenv("UA_WORKDIR", "/etc/baresip")
	t.Setenv("UA_DIRECTIVES", "module\t\tstdio.so;answermode\tauto")
	t.Setenv("UA_REGISTRATION_MARKERS", "200 OK, registered")

	// 录音
	t.Setenv("RECORDING_MAX_SECONDS", "45")
	t.Setenv("RECORDING_GRACE_SECONDS", "3s")
	t.Setenv("RECORDING_RETENTION_DAYS", "14")
	t.Setenv("ATTACH_RECORDING", "false")

	// 语音
	t.Setenv("TTS_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STT_PROVIDER", "google")

	// 通知
	t.Setenv("WEBHOOK_TOKEN", "hook-secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("MAIL_TO", "ops@example.com, oncall@example.com")
	t.Setenv("MAIL_HOST", "smtp.example.com")
	t.Setenv("MAIL_FROM", "lingline@example.com")
}

func TestLoad(t *testing.T) {
	setAllEnvs(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.APIPrefix)
	assert.Equal(t, "/metrics", cfg.Server.MonitorPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 128, cfg.Log.MaxSize)
	assert.Equal(t, 30, cfg.Log.MaxAge)

	assert.Equal(t, "sip:100@pbx.local", cfg.SIP.Identity)
	assert.Equal(t, "/etc/baresip", cfg.SIP.Agent.WorkDir)
	assert.Equal(t, []string{"module\t\tstdio.so", "answermode\tauto"}, cfg.SIP.Agent.Directives)
	assert.Equal(t, []string{"200 OK", "registered"}, cfg.SIP.Agent.RegistrationMarkers)

	assert.Equal(t, 45*time.Second, cfg.Recording.MaxDuration)
	assert.Equal(t, 3*time.Second, cfg.Recording.Grace)
	assert.Equal(t, "/var/lingline/recordings", cfg.Recording.Dir)
	assert.Equal(t, 14, cfg.Recording.RetentionDays)
	assert.Equal(t, cfg.Recording.Dir, cfg.Call.RecordingDir)
	assert.Equal(t, 48*time.Second, cfg.Call.LineTimeout)
	assert.False(t, cfg.Call.AttachRecording)

	assert.Equal(t, synthesizer.VendorOpenAI, cfg.Voice.TTS.Provider)
	assert.Equal(t, "/var/lingline/greetings", cfg.Voice.TTS.OutputDir)
	assert.Equal(t, "sk-test", cfg.Voice.TTS.OpenAI.APIKey)
	assert.Equal(t, "phone_call", cfg.Voice.STT.Google.Model)

	assert.Equal(t, "hook-secret", cfg.Middleware.WebhookToken)
	assert.Equal(t, int64(-100200), cfg.Notification.Telegram.ChatID)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.Notification.Mail.To)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test-does-not-exist")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8087", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.APIPrefix)
	assert.Empty(t, cfg.Middleware.WebhookToken)
	assert.Equal(t, time.Minute, cfg.Recording.MaxDuration)
	assert.Equal(t, "/ausrc aufile,%s", cfg.Call.PlaybackTemplate)
	assert.Nil(t, cfg.SIP.Agent.Directives)
	assert.True(t, cfg.SIP.Autostart)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown tts":          func(c *Config) { c.Voice.TTS.Provider = "acme" },
		"unknown stt":          func(c *Config) { c.Voice.STT.Provider = "acme" },
		"bad prefix":           func(c *Config) { c.Server.APIPrefix = "api" },
		"bad log level":        func(c *Config) { c.Log.Level = "loud" },
		"no max duration":      func(c *Config) { c.Recording.MaxDuration = 0 },
		"bad template":         func(c *Config) { c.Call.PlaybackTemplate = "/ausrc aufile" },
		"telegram without id":  func(c *Config) { c.Notification.Telegram.ChatID = 0 },
		"mail without host":    func(c *Config) { c.Notification.Mail.Host = "" },
		"half storage secrets": func(c *Config) { c.Recording.Storage.APIKey = "k" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			setAllEnvs(t)
			cfg, err := Load()
			require.NoError(t, err)

			mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "test-does-not-exist")
	t.Setenv("TTS_PROVIDER", "acme")
	_, err := Load()
	assert.ErrorIs(t, err, ErrConfig)
}
