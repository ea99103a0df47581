package recognizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/sirupsen/logrus"
)

// Vendor 供应商类型
type Vendor string

const (
	// VendorNone 未配置
	VendorNone Vendor = "none"
	// VendorOpenAI OpenAI Whisper
	VendorOpenAI Vendor = "openai"
	// VendorGoogle Google
	VendorGoogle Vendor = "google"
)

// TranscriberConfig 统一的配置接口
type TranscriberConfig interface {
	GetVendor() Vendor
}

// TranscriberFactory 工厂接口
type TranscriberFactory interface {
	// CreateTranscriber 根据配置创建 TranscribeService
	CreateTranscriber(config TranscriberConfig) (TranscribeService, error)
	// GetSupportedVendors 获取支持的供应商列表
	GetSupportedVendors() []Vendor
	// IsVendorSupported 检查供应商是否支持
	IsVendorSupported(vendor Vendor) bool
}

// DefaultTranscriberFactory 默认工厂实现
type DefaultTranscriberFactory struct {
	creators map[Vendor]func(TranscriberConfig) (TranscribeService, error)
	mu       sync.RWMutex
}

// NewTranscriberFactory 创建新的工厂实例
func NewTranscriberFactory() *DefaultTranscriberFactory {
	factory := &DefaultTranscriberFactory{
		creators: make(map[Vendor]func(TranscriberConfig) (TranscribeService, error)),
	}
	factory.registerDefaultCreators()
	return factory
}

// RegisterCreator 注册创建函数
func (f *DefaultTranscriberFactory) RegisterCreator(vendor Vendor, creator func(TranscriberConfig) (TranscribeService, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[vendor] = creator
}

// CreateTranscriber 创建 TranscribeService
func (f *DefaultTranscriberFactory) CreateTranscriber(config TranscriberConfig) (TranscribeService, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	vendor := config.GetVendor()
	f.mu.RLock()
	creator, exists := f.creators[vendor]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("vendor %s not supported", vendor)
	}

	svc, err := creator(config)
	if err != nil {
		return nil, err
	}
	if c, ok := config.(*Config); ok && c.Timeout > 0 {
		svc = &timeoutTranscriber{TranscribeService: svc, timeout: c.Timeout}
	}
	return svc, nil
}

// GetSupportedVendors 获取支持的供应商列表
func (f *DefaultTranscriberFactory) GetSupportedVendors() []Vendor {
	f.mu.RLock()
	defer f.mu.RUnlock()

	vendors := make([]Vendor, 0, len(f.creators))
	for vendor := range f.creators {
		vendors = append(vendors, vendor)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
	return vendors
}

// IsVendorSupported 检查供应商是否支持
func (f *DefaultTranscriberFactory) IsVendorSupported(vendor Vendor) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.creators[vendor]
	return exists
}

// registerDefaultCreators 注册默认创建函数
func (f *DefaultTranscriberFactory) registerDefaultCreators() {
	f.RegisterCreator(VendorNone, func(TranscriberConfig) (TranscribeService, error) {
		return NewNone(), nil
	})

	// 注册 OpenAI Whisper
	f.RegisterCreator(VendorOpenAI, func(config TranscriberConfig) (TranscribeService, error) {
		cfg, ok := config.(*Config)
		if !ok {
			return nil, fmt.Errorf("invalid config type for openai")
		}
		opt := cfg.OpenAI
		if opt.Language == "" {
			opt.Language = cfg.Language
		}
		return NewWhisperASR(opt)
	})

	// 注册Google
	f.RegisterCreator(VendorGoogle, func(config TranscriberConfig) (TranscribeService, error) {
		cfg, ok := config.(*Config)
		if !ok {
			return nil, fmt.Errorf("invalid config type for google")
		}
		opt := cfg.Google
		if opt.LanguageCode == "" {
			opt.LanguageCode = cfg.Language
		}
		return NewGoogleASR(opt), nil
	})

	logrus.WithFields(logrus.Fields{
		"vendors": f.GetSupportedVendors(),
	}).Debug("transcriber factory initialized")
}

// New builds the configured transcriber with a fresh factory.
func New(cfg Config) (TranscribeService, error) {
	return NewTranscriberFactory().CreateTranscriber(&cfg)
}

type timeoutTranscriber struct {
	TranscribeService
	timeout time.Duration
}

func (t *timeoutTranscriber) Transcribe(ctx context.Context, artifact *media.Artifact) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.TranscribeService.Transcribe(ctx, artifact)
}
