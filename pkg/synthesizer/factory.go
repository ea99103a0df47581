package synthesizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
)

// Creator builds a Synthesizer from the shared configuration.
type Creator func(cfg Config) (Synthesizer, error)

// Factory maps vendors to creators.
type Factory struct {
	creators map[Vendor]Creator
	mu       sync.RWMutex
}

// NewFactory returns a factory with every built-in vendor registered.
func NewFactory() *Factory {
	f := &Factory{creators: make(map[Vendor]Creator)}
	f.Register(VendorNone, func(Config) (Synthesizer, error) { return NewNone(), nil })
	f.Register(VendorOpenAI, func(cfg Config) (Synthesizer, error) { return NewOpenAIService(cfg.OpenAI, cfg.OutputDir) })
	f.Register(VendorGoogle, func(cfg Config) (Synthesizer, error) { return NewGoogleService(cfg.Google, cfg.OutputDir), nil })
	f.Register(VendorFishAudio, func(cfg Config) (Synthesizer, error) { return NewFishAudioService(cfg.FishAudio, cfg.OutputDir) })
	f.Register(VendorLocal, func(cfg Config) (Synthesizer, error) { return NewLocalService(cfg.Local, cfg.OutputDir) })
	return f
}

// Register adds or replaces the creator for vendor.
func (f *Factory) Register(vendor Vendor, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[vendor] = creator
}

// Create builds the configured synthesizer. An empty provider means none.
func (f *Factory) Create(cfg Config) (Synthesizer, error) {
	vendor := cfg.Provider
	if vendor == "" {
		vendor = VendorNone
	}
	f.mu.RLock()
	creator, ok := f.creators[vendor]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tts vendor %q not supported", vendor)
	}
	s, err := creator(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s tts: %w", vendor, err)
	}
	if cfg.CacheTTL > 0 && vendor != VendorNone {
		s = NewCached(s, cfg.CacheTTL)
	}
	if cfg.Timeout > 0 {
		s = &timeoutSynthesizer{Synthesizer: s, timeout: cfg.Timeout}
	}
	return s, nil
}

// SupportedVendors lists registered vendors in name order.
func (f *Factory) SupportedVendors() []Vendor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	vendors := make([]Vendor, 0, len(f.creators))
	for v := range f.creators {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
	return vendors
}

// New builds the configured synthesizer with the default factory.
func New(cfg Config) (Synthesizer, error) {
	return NewFactory().Create(cfg)
}

type timeoutSynthesizer struct {
	Synthesizer
	timeout time.Duration
}

func (t *timeoutSynthesizer) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return t.Synthesizer.Synthesize(ctx, text)
}
