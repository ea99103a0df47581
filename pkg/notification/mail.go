package notification

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// MailProvider defines the interface for email providers
type MailProvider interface {
	Send(ctx context.Context, m Mail) (string, error) // Returns messageID
}

// MailConfig email configuration
type MailConfig struct {
	Host     string   `env:"MAIL_HOST"`
	Port     int64    `env:"MAIL_PORT"`
	Username string   `env:"MAIL_USERNAME"`
	Password string   `env:"MAIL_PASSWORD"`
	From     string   `env:"MAIL_FROM"`
	To       []string `env:"MAIL_TO"`
	// Subject prefix, e.g. "[LingLine]"
	Subject string `env:"MAIL_SUBJECT"`
}

func (c MailConfig) Enabled() bool {
	return c.Host != "" && len(c.To) > 0
}

// MailNotification email notification service
type MailNotification struct {
	provider MailProvider
	cfg      MailConfig
}

// NewMailNotification creates email notification instance
func NewMailNotification(config MailConfig) (*MailNotification, error) {
	if config.From == "" {
		return nil, errors.New("MAIL_FROM is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Subject == "" {
		config.Subject = "[LingLine]"
	}
	return &MailNotification{
		provider: NewSMTPClient(SMTPConfig{
			Host:     config.Host,
			Port:     config.Port,
			Username: config.Username,
			Password: config.Password,
			From:     config.From,
		}),
		cfg: config,
	}, nil
}

func (m *MailNotification) Name() string { return "mail" }

// subject is the prefix plus the first line of the message, without markup.
func (m *MailNotification) subject(message string) string {
	first, _, _ := strings.Cut(message, "\n")
	first = strings.NewReplacer("*", "", "_", "", "`", "").Replace(first)
	return strings.TrimSpace(m.cfg.Subject + " " + strings.TrimSpace(first))
}

func (m *MailNotification) SendText(ctx context.Context, message string, _ Format) error {
	return m.send(ctx, Mail{
		To:      m.cfg.To,
		Subject: m.subject(message),
		Body:    message,
	})
}

func (m *MailNotification) SendDocument(ctx context.Context, path, caption string) error {
	if caption == "" {
		caption = filepath.Base(path)
	}
	return m.send(ctx, Mail{
		To:         m.cfg.To,
		Subject:    m.subject(caption),
		Body:       caption,
		Attachment: path,
	})
}

func (m *MailNotification) send(ctx context.Context, mail Mail) error {
	messageID, err := m.provider.Send(ctx, mail)
	logger.Info("Email sent via provider",
		zap.Strings("to", mail.To),
		zap.String("subject", mail.Subject),
		zap.String("messageId", messageID),
		zap.Bool("attachment", mail.Attachment != ""),
		zap.Error(err))
	return err
}
