package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/config"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// LogConfigInfo Print the loaded configuration, secrets masked
func LogConfigInfo(cfg *config.Config) {
	logger.Info("system config load finished")
	logger.Info("server config",
		zap.String("server_name", cfg.Server.Name),
		zap.String("mode", cfg.Server.Mode),
		zap.String("addr", cfg.Server.Addr),
		zap.String("api_prefix", cfg.Server.APIPrefix),
		zap.String("monitor_prefix", cfg.Server.MonitorPrefix),
		zap.String("audio_dir", cfg.Server.AudioDir),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout),
	)

	logger.Info("log config",
		zap.String("log_level", cfg.Log.Level),
		zap.String("log_filename", cfg.Log.Filename),
		zap.Int("log_max_size", cfg.Log.MaxSize),
		zap.Int("log_max_age", cfg.Log.MaxAge),
		zap.Int("log_max_backups", cfg.Log.MaxBackups),
	)

	logger.Info("webhook config",
		zap.Bool("rate_limit_enabled", cfg.Middleware.EnableRateLimit),
		zap.String("rate_limit", cfg.Middleware.RateLimit),
		zap.String("webhook_token", maskSecret(cfg.Middleware.WebhookToken)),
	)

	logger.Info("sip config",
		zap.String("sip_identity", cfg.SIP.Identity),
		zap.Bool("autostart", cfg.SIP.Autostart),
		zap.Duration("registration_timeout", cfg.SIP.RegistrationTimeout),
		zap.String("binary", cfg.SIP.Agent.Binary),
		zap.String("workdir", cfg.SIP.Agent.WorkDir),
		zap.Int("directives", len(cfg.SIP.Agent.Directives)),
	)

	logger.Info("recording config",
		zap.String("tool", cfg.Recording.Tool),
		zap.String("device", cfg.Recording.Device),
		zap.String("dir", cfg.Recording.Dir),
		zap.Duration("max_duration", cfg.Recording.MaxDuration),
		zap.Duration("grace", cfg.Recording.Grace),
		zap.Int("retention_days", cfg.Recording.RetentionDays),
		zap.Bool("archive_enabled", cfg.Recording.Storage.Enabled()),
		zap.Bool("attach_recording", cfg.Call.AttachRecording),
	)

	logger.Info("voice config",
		zap.String("tts_provider", string(cfg.Voice.TTS.Provider)),
		zap.String("tts_output_dir", cfg.Voice.TTS.OutputDir),
		zap.String("stt_provider", string(cfg.Voice.STT.Provider)),
		zap.String("stt_language", cfg.Voice.STT.Language),
	)

	logger.Info("notification config",
		zap.Bool("telegram_enabled", cfg.Notification.Telegram.Enabled()),
		zap.Int64("telegram_chat_id", cfg.Notification.Telegram.ChatID),
		zap.String("telegram_token", maskSecret(cfg.Notification.Telegram.Token)),
		zap.Bool("slack_enabled", cfg.Notification.Slack.Enabled()),
		zap.Bool("mail_enabled", cfg.Notification.Mail.Enabled()),
		zap.Strings("mail_to", cfg.Notification.Mail.To),
	)
}

// maskSecret keeps the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// PrintBannerFromFile Read file and print
func PrintBannerFromFile(w io.Writer, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	colors := []string{
		"\x1b[38;5;165m",
		"\x1b[38;5;189m",
		"\x1b[38;5;207m",
		"\x1b[38;5;219m",
		"\x1b[38;5;225m",
		"\x1b[38;5;231m",
	}

	for i, line := range lines {
		color := colors[i%len(colors)]
		fmt.Fprintln(w, color+line+"\x1b[0m")
	}
	return nil
}
