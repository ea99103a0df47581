package notification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slack-go/slack"
)

// SlackConfig Slack 机器人配置
type SlackConfig struct {
	Token     string `env:"SLACK_BOT_TOKEN"`
	ChannelID string `env:"SLACK_CHANNEL_ID"`
	APIURL    string `env:"SLACK_API_URL"`
}

func (c SlackConfig) Enabled() bool {
	return c.Token != "" && c.ChannelID != ""
}

type Slack struct {
	cfg    SlackConfig
	client *slack.Client
}

func NewSlack(cfg SlackConfig) *Slack {
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Slack{cfg: cfg, client: slack.New(cfg.Token, opts...)}
}

func (s *Slack) Name() string { return "slack" }

// formatContent converts Telegram style Markdown to Slack mrkdwn.
func (s *Slack) formatContent(content string, format Format) string {
	if format != FormatMarkdown {
		return content
	}
	return strings.ReplaceAll(content, "**", "*")
}

func (s *Slack) SendText(ctx context.Context, message string, format Format) error {
	_, _, err := s.client.PostMessageContext(ctx, s.cfg.ChannelID,
		slack.MsgOptionText(s.formatContent(message, format), false))
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func (s *Slack) SendDocument(ctx context.Context, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	_, err = s.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:         f,
		FileSize:       int(info.Size()),
		Filename:       filepath.Base(path),
		Title:          filepath.Base(path),
		InitialComment: caption,
		Channel:        s.cfg.ChannelID,
	})
	if err != nil {
		return fmt.Errorf("failed to upload slack file: %w", err)
	}
	return nil
}
