package publicsuffix

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Store holds the current RuleSet for concurrent readers. Refreshing replaces
// the whole set; a RuleSet handed out earlier stays valid and unchanged.
type Store struct {
	current atomic.Pointer[RuleSet]
}

// NewStore returns a Store holding rs.
func NewStore(rs *RuleSet) *Store {
	s := &Store{}
	s.current.Store(rs)
	return s
}

// Rules returns the current RuleSet.
func (s *Store) Rules() *RuleSet {
	return s.current.Load()
}

// Replace swaps in rs.
func (s *Store) Replace(rs *RuleSet) {
	s.current.Store(rs)
}

// Refresh loads a RuleSet with l and swaps it in. On error the current set is
// kept.
func (s *Store) Refresh(ctx context.Context, l *Loader) error {
	rs, err := l.Load(ctx)
	if err != nil {
		return err
	}
	s.Replace(rs)
	return nil
}

// Run calls Refresh every interval until ctx is done. Failures are logged and
// the previous set stays in use. A non-positive interval means the loader's
// MaxAge.
func (s *Store) Run(ctx context.Context, l *Loader, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = l.defaults().MaxAge
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx, l); err != nil {
				logger.Error("public suffix list refresh failed", slog.Any("error", err))
				continue
			}
			logger.Debug("public suffix list refreshed", slog.Int("rules", s.Rules().Len()))
		}
	}
}
