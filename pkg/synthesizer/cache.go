package synthesizer

import (
	"context"
	"time"

	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Cached reuses a synthesized file for the same text while it is still on disk.
type Cached struct {
	Synthesizer
	items *cache.Cache
}

func NewCached(s Synthesizer, ttl time.Duration) *Cached {
	return &Cached{
		Synthesizer: s,
		items:       cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Synthesize(ctx context.Context, text string) (*media.Artifact, error) {
	key := c.CacheKey(text)
	if v, ok := c.items.Get(key); ok {
		if artifact := v.(*media.Artifact); artifact.Exists() {
			logrus.WithField("key", key).Debug("tts cache hit")
			return artifact, nil
		}
		c.items.Delete(key)
	}
	artifact, err := c.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	c.items.SetDefault(key, artifact)
	return artifact, nil
}

// Len is the number of cached entries, expired ones included until cleanup.
func (c *Cached) Len() int {
	return c.items.ItemCount()
}
