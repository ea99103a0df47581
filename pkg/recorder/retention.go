package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retention prunes old audio files on a cron schedule.
type Retention struct {
	dirs    []string
	maxAge  time.Duration
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewRetention returns nil when days is not positive.
func NewRetention(days int, schedule string, dirs ...string) (*Retention, error) {
	if days <= 0 {
		return nil, nil
	}
	if schedule == "" {
		schedule = "@daily"
	}
	r := &Retention{
		dirs:   dirs,
		maxAge: time.Duration(days) * 24 * time.Hour,
		cron:   cron.New(),
	}
	id, err := r.cron.AddFunc(schedule, func() { r.Prune(time.Now()) })
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	r.entryID = id
	return r, nil
}

// Start starts the scheduler
func (r *Retention) Start() {
	if r == nil {
		return
	}
	r.cron.Start()
	logger.Info("Recording retention started",
		zap.Strings("dirs", r.dirs),
		zap.Duration("maxAge", r.maxAge),
		zap.Time("next", r.cron.Entry(r.entryID).Next))
}

// Stop stops the scheduler and waits for a running prune.
func (r *Retention) Stop() {
	if r == nil {
		return
	}
	<-r.cron.Stop().Done()
	logger.Info("Recording retention stopped")
}

// Prune deletes .wav files older than the retention window and returns how
// many were removed.
func (r *Retention) Prune(now time.Time) int {
	cutoff := now.Add(-r.maxAge)
	removed := 0
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("retention: read dir failed", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn("retention: remove failed", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("retention: pruned recordings", zap.Int("removed", removed))
	}
	return removed
}
