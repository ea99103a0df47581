package notification

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Format is the markup of a text message.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

// Notifier delivers operator messages to one destination.
type Notifier interface {
	Name() string
	SendText(ctx context.Context, message string, format Format) error
	// SendDocument streams the file at path as an attachment.
	SendDocument(ctx context.Context, path, caption string) error
}

// Config enables each destination whose credentials are present.
type Config struct {
	Timeout  time.Duration `env:"NOTIFY_TIMEOUT"`
	Telegram TelegramConfig
	Slack    SlackConfig
	Mail     MailConfig
}

// New fans out to every configured destination, or returns Nop when none is.
func New(cfg Config) (Notifier, error) {
	var targets []Notifier
	if cfg.Telegram.Enabled() {
		targets = append(targets, NewTelegram(cfg.Telegram))
	}
	if cfg.Slack.Enabled() {
		targets = append(targets, NewSlack(cfg.Slack))
	}
	if cfg.Mail.Enabled() {
		m, err := NewMailNotification(cfg.Mail)
		if err != nil {
			return nil, err
		}
		targets = append(targets, m)
	}
	switch len(targets) {
	case 0:
		return Nop{}, nil
	case 1:
		return targets[0], nil
	default:
		return Multi(targets), nil
	}
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, n := range m {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) SendText(ctx context.Context, message string, format Format) error {
	var errs []error
	for _, n := range m {
		if err := n.SendText(ctx, message, format); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendDocument(ctx context.Context, path, caption string) error {
	var errs []error
	for _, n := range m {
		if err := n.SendDocument(ctx, path, caption); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Name() string                                       { return "nop" }
func (Nop) SendText(context.Context, string, Format) error     { return nil }
func (Nop) SendDocument(context.Context, string, string) error { return nil }
