package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig Telegram 机器人配置
type TelegramConfig struct {
	Token  string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `env:"TELEGRAM_CHAT_ID"`
	// Endpoint 形如 https://api.telegram.org/bot%s/%s
	Endpoint string `env:"TELEGRAM_API_ENDPOINT"`
}

func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

// Telegram sends to a single chat. The bot is created on first use since
// creating it performs a getMe round trip.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{cfg: cfg, client: &http.Client{Timeout: 60 * time.Second}}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) getBot() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, t.cfg.Endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

// send runs a blocking bot call while honoring ctx.
func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.getBot()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(c)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Telegram) SendText(ctx context.Context, message string, format Format) error {
	msg := tgbotapi.NewMessage(t.cfg.ChatID, message)
	if format == FormatMarkdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	err := t.send(ctx, msg)
	if err != nil && msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		// caller-provided text broke the markup, resend it verbatim
		msg.ParseMode = ""
		err = t.send(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, path, caption string) error {
	doc := tgbotapi.NewDocument(t.cfg.ChatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if err := t.send(ctx, doc); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	return nil
}
