package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/code-100-precent/LingLine/pkg/callflow"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/middleware"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/recognizer"
	"github.com/code-100-precent/LingLine/pkg/recorder"
	"github.com/code-100-precent/LingLine/pkg/synthesizer"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/code-100-precent/LingLine/pkg/utils"
	"go.uber.org/zap/zapcore"
)

// ErrConfig marks an invalid or incomplete configuration. It is fatal at startup.
var ErrConfig = errors.New("invalid configuration")

// Config main configuration structure
type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Log          logger.LogConfig    `mapstructure:"log"`
	Middleware   middleware.Config   `mapstructure:"middleware"`
	SIP          SIPConfig           `mapstructure:"sip"`
	Recording    recorder.Config     `mapstructure:"recording"`
	Call         callflow.Config     `mapstructure:"call"`
	Voice        VoiceConfig         `mapstructure:"voice"`
	Notification notification.Config `mapstructure:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Name            string        `env:"SERVER_NAME"`
	Addr            string        `env:"ADDR"`
	Mode            string        `env:"MODE"`
	APIPrefix       string        `env:"API_PREFIX"`
	MonitorPrefix   string        `env:"MONITOR_PREFIX"`
	AudioDir        string        `env:"AUDIO_DIR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// SIPConfig SIP 客户端配置
type SIPConfig struct {
	// Identity is the account shown in status, e.g. sip:100@pbx.local
	Identity            string        `env:"SIP_IDENTITY"`
	Autostart           bool          `env:"UA_AUTOSTART"`
	RegistrationTimeout time.Duration `env:"UA_REGISTRATION_TIMEOUT"`
	Agent               useragent.Config
}

// VoiceConfig TTS/STT 配置
type VoiceConfig struct {
	TTS synthesizer.Config `mapstructure:"tts"`
	STT recognizer.Config  `mapstructure:"stt"`
}

// Load reads .env (.env.<APP_ENV> when set) and the process environment.
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if err := utils.LoadEnv(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	audioDir := getStringOrDefault("AUDIO_DIR", "./audio")
	cfg := &Config{
		Server: ServerConfig{
			Name:            getStringOrDefault("SERVER_NAME", "LingLine"),
			Addr:            getStringOrDefault("ADDR", ":8087"),
			Mode:            getStringOrDefault("MODE", "production"),
			APIPrefix:       getStringOrDefault("API_PREFIX", "/api"),
			MonitorPrefix:   getStringOrDefault("MONITOR_PREFIX", "/metrics"),
			AudioDir:        audioDir,
			ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/lingline.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", false),
		},
		Middleware: middleware.Config{
			EnableRateLimit: getBoolOrDefault("ENABLE_RATE_LIMIT", true),
			RateLimit:       getStringOrDefault("RATE_LIMIT", middleware.DefaultRate),
			WebhookToken:    utils.GetEnv("WEBHOOK_TOKEN"),
		},
		SIP: SIPConfig{
			Identity:            getStringOrDefault("SIP_IDENTITY", ""),
			Autostart:           getBoolOrDefault("UA_AUTOSTART", true),
			RegistrationTimeout: getDurationOrDefault("UA_REGISTRATION_TIMEOUT", 30*time.Second),
			Agent: useragent.Config{
				Binary:              getStringOrDefault("UA_BINARY", "baresip"),
				Args:                utils.GetListEnv("UA_ARGS"),
				WorkDir:             getStringOrDefault("UA_WORKDIR", "/root/.baresip"),
				ControlPath:         utils.GetEnv("UA_CONTROL_PATH"),
				Directives:          loadDirectives(),
				RegistrationMarkers: utils.GetListEnv("UA_REGISTRATION_MARKERS"),
				ShutdownGrace:       getDurationOrDefault("UA_SHUTDOWN_GRACE", 5*time.Second),
			},
		},
		Recording: recorder.Config{
			Tool:              getStringOrDefault("RECORDING_TOOL", "arecord"),
			Device:            getStringOrDefault("RECORDING_DEVICE", "default"),
			Args:              utils.GetListEnv("RECORDING_ARGS"),
			Dir:               getStringOrDefault("RECORDING_DIR", filepath.Join(audioDir, "recordings")),
			MaxDuration:       getDurationOrDefault("RECORDING_MAX_SECONDS", 60*time.Second),
			Grace:             getDurationOrDefault("RECORDING_GRACE_SECONDS", 5*time.Second),
			RetentionDays:     getIntOrDefault("RECORDING_RETENTION_DAYS", 0),
			RetentionSchedule: getStringOrDefault("RECORDING_RETENTION_SCHEDULE", "@daily"),
			Storage: recorder.StorageConfig{
				BaseURL:   getStringOrDefault("LINGSTORAGE_BASE_URL", "https://api.lingstorage.com"),
				APIKey:    utils.GetEnv("LINGSTORAGE_API_KEY"),
				APISecret: utils.GetEnv("LINGSTORAGE_API_SECRET"),
				Bucket:    getStringOrDefault("LINGSTORAGE_BUCKET", "default"),
				Prefix:    getStringOrDefault("LINGSTORAGE_PREFIX", "recordings"),
			},
		},
		Voice: VoiceConfig{
			TTS: synthesizer.Config{
				Provider:  synthesizer.Vendor(strings.ToLower(utils.GetEnv("TTS_PROVIDER"))),
				OutputDir: getStringOrDefault("TTS_OUTPUT_DIR", filepath.Join(audioDir, "greetings")),
				Timeout:   getDurationOrDefault("TTS_TIMEOUT", 20*time.Second),
				CacheTTL:  getDurationOrDefault("TTS_CACHE_TTL", 24*time.Hour),
				OpenAI: synthesizer.OpenAIConfig{
					APIKey:  utils.GetEnv("OPENAI_API_KEY"),
					BaseURL: utils.GetEnv("OPENAI_BASE_URL"),
					Model:   utils.GetEnv("OPENAI_TTS_MODEL"),
					Voice:   utils.GetEnv("OPENAI_TTS_VOICE"),
					Speed:   getFloatOrDefault("OPENAI_TTS_SPEED", 1.0),
				},
				Google: synthesizer.GoogleConfig{
					CredentialsFile: utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS"),
					LanguageCode:    getStringOrDefault("GOOGLE_TTS_LANGUAGE", "en-US"),
					VoiceName:       utils.GetEnv("GOOGLE_TTS_VOICE"),
					SpeakingRate:    getFloatOrDefault("GOOGLE_TTS_SPEAKING_RATE", 1.0),
				},
				FishAudio: loadFishAudioConfig(),
				Local: synthesizer.LocalConfig{
					Engine:   synthesizer.LocalEngine(getStringOrDefault("LOCAL_TTS_ENGINE", "espeak")),
					Language: utils.GetEnv("LOCAL_TTS_LANGUAGE"),
					Speed:    getFloatOrDefault("LOCAL_TTS_SPEED", 0),
					Command:  utils.GetEnv("LOCAL_TTS_COMMAND"),
				},
			},
			STT: recognizer.Config{
				Provider: recognizer.Vendor(strings.ToLower(utils.GetEnv("STT_PROVIDER"))),
				Language: getStringOrDefault("STT_LANGUAGE", "en-US"),
				Timeout:  getDurationOrDefault("STT_TIMEOUT", 60*time.Second),
				OpenAI: recognizer.WhisperConfig{
					APIKey:  utils.GetEnv("OPENAI_API_KEY"),
					BaseURL: utils.GetEnv("OPENAI_BASE_URL"),
					Model:   utils.GetEnv("OPENAI_STT_MODEL"),
					Prompt:  utils.GetEnv("OPENAI_STT_PROMPT"),
				},
				Google: recognizer.GoogleConfig{
					CredentialsFile: utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS"),
					Model:           getStringOrDefault("GOOGLE_STT_MODEL", "phone_call"),
				},
			},
		},
		Notification: notification.Config{
			Timeout: getDurationOrDefault("NOTIFY_TIMEOUT", 30*time.Second),
			Telegram: notification.TelegramConfig{
				Token:    utils.GetEnv("TELEGRAM_BOT_TOKEN"),
				ChatID:   utils.GetIntEnv("TELEGRAM_CHAT_ID"),
				Endpoint: utils.GetEnv("TELEGRAM_API_ENDPOINT"),
			},
			Slack: notification.SlackConfig{
				Token:     utils.GetEnv("SLACK_BOT_TOKEN"),
				ChannelID: utils.GetEnv("SLACK_CHANNEL_ID"),
				APIURL:    utils.GetEnv("SLACK_API_URL"),
			},
			Mail: notification.MailConfig{
				Host:     utils.GetEnv("MAIL_HOST"),
				Port:     utils.GetIntEnv("MAIL_PORT"),
				Username: utils.GetEnv("MAIL_USERNAME"),
				Password: utils.GetEnv("MAIL_PASSWORD"),
				From:     utils.GetEnv("MAIL_FROM"),
				To:       utils.GetListEnv("MAIL_TO"),
				Subject:  getStringOrDefault("MAIL_SUBJECT", "[LingLine]"),
			},
		},
	}
	cfg.Call = callflow.Config{
		Greeting:         getStringOrDefault("GREETING_TEXT", "Hello. Please leave your message after the tone."),
		PlaybackTemplate: getStringOrDefault("PLAYBACK_TEMPLATE", callflow.DefaultPlaybackTemplate),
		RecordingDir:     cfg.Recording.Dir,
		MaxDuration:      cfg.Recording.MaxDuration,
		Grace:            cfg.Recording.Grace,
		LineTimeout:      getDurationOrDefault("RECORDING_LINE_TIMEOUT", cfg.Recording.MaxDuration+cfg.Recording.Grace),
		AttachRecording:  getBoolOrDefault("ATTACH_RECORDING", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server address is required")
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		add("API_PREFIX must start with '/': %q", c.Server.APIPrefix)
	}
	if !strings.HasPrefix(c.Server.MonitorPrefix, "/") {
		add("MONITOR_PREFIX must start with '/': %q", c.Server.MonitorPrefix)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("LOG_LEVEL: %v", err)
	}

	if c.Recording.MaxDuration <= 0 {
		add("RECORDING_MAX_SECONDS must be positive")
	}
	if c.Recording.Grace < 0 {
		add("RECORDING_GRACE_SECONDS must not be negative")
	}
	if c.Call.PlaybackTemplate != "" && strings.Count(c.Call.PlaybackTemplate, "%s") != 1 {
		add("PLAYBACK_TEMPLATE needs exactly one %%s: %q", c.Call.PlaybackTemplate)
	}

	if c.Voice.TTS.Provider != "" && !ttsSupported(c.Voice.TTS.Provider) {
		add("unsupported TTS_PROVIDER %q", c.Voice.TTS.Provider)
	}
	if c.Voice.STT.Provider != "" && !recognizer.NewTranscriberFactory().IsVendorSupported(c.Voice.STT.Provider) {
		add("unsupported STT_PROVIDER %q", c.Voice.STT.Provider)
	}

	tg := c.Notification.Telegram
	if tg.Token != "" && tg.ChatID == 0 {
		add("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	sl := c.Notification.Slack
	if sl.Token != "" && sl.ChannelID == "" {
		add("SLACK_CHANNEL_ID is required when SLACK_BOT_TOKEN is set")
	}
	mail := c.Notification.Mail
	if len(mail.To) > 0 && (mail.Host == "" || mail.From == "") {
		add("MAIL_HOST and MAIL_FROM are required when MAIL_TO is set")
	}
	st := c.Recording.Storage
	if (st.APIKey == "") != (st.APISecret == "") {
		add("LINGSTORAGE_API_KEY and LINGSTORAGE_API_SECRET must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

func ttsSupported(v synthesizer.Vendor) bool {
	for _, s := range synthesizer.NewFactory().SupportedVendors() {
		if s == v {
			return true
		}
	}
	return false
}

func loadFishAudioConfig() synthesizer.FishAudioConfig {
	fa := synthesizer.NewFishAudioConfig(utils.GetEnv("FISHAUDIO_API_KEY"), utils.GetEnv("FISHAUDIO_REFERENCE_ID"))
	fa.BaseURL = getStringOrDefault("FISHAUDIO_BASE_URL", fa.BaseURL)
	fa.Model = getStringOrDefault("FISHAUDIO_MODEL", fa.Model)
	return fa
}

// loadDirectives keeps the built-in directives unless UA_DIRECTIVES is set.
// Items are separated by ';' since directive values may contain commas.
func loadDirectives() []string {
	v := utils.GetEnv("UA_DIRECTIVES")
	if v == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(v, ";") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if utils.GetEnv(key) == "" {
		return defaultValue
	}
	return utils.GetFloatEnv(key)
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d := utils.GetDurationEnv(key); d > 0 {
		return d
	}
	return defaultValue
}
