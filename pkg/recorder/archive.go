package recorder

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/LingByte/lingstorage-sdk-go"
)

// StorageConfig LingStorage 配置
type StorageConfig struct {
	BaseURL   string `env:"LINGSTORAGE_BASE_URL"`
	APIKey    string `env:"LINGSTORAGE_API_KEY"`
	APISecret string `env:"LINGSTORAGE_API_SECRET"`
	Bucket    string `env:"LINGSTORAGE_BUCKET"`
	Prefix    string `env:"LINGSTORAGE_PREFIX"`
}

func (c StorageConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Archiver copies a finished recording somewhere durable and returns a link.
type Archiver interface {
	Archive(ctx context.Context, file string) (string, error)
}

// LingStorageArchiver streams recordings to a LingStorage bucket.
type LingStorageArchiver struct {
	cfg    StorageConfig
	client *lingstorage.Client
}

// NewArchiver returns nil when storage credentials are not configured.
func NewArchiver(cfg StorageConfig) *LingStorageArchiver {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.lingstorage.com"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "default"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "recordings"
	}
	return &LingStorageArchiver{
		cfg: cfg,
		client: lingstorage.NewClient(&lingstorage.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
	}
}

func (a *LingStorageArchiver) Archive(ctx context.Context, file string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join(a.cfg.Prefix, filepath.Base(file))
	result, err := a.client.UploadFromReader(&lingstorage.UploadFromReaderRequest{
		Reader:   f,
		Bucket:   a.cfg.Bucket,
		Filename: key,
		Key:      key,
	})
	if err != nil {
		return "", fmt.Errorf("上传录音失败: %w", err)
	}
	return result.URL, nil
}
