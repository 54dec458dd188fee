// Package screening holds the sanctions reference set used by the scoring
// engine's sanctions layer. The set is exact-match only and is refreshed
// out of band; the engine treats it as a read-only dependency.
package screening

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SanctionsSet is a concurrency-safe exact-match membership set of
// watch-listed entity names. Lookups are case- and whitespace-sensitive
// except for surrounding whitespace, which upstream list formats routinely
// carry.
type SanctionsSet struct {
	mu          sync.RWMutex
	names       map[string]struct{}
	lastUpdated time.Time
	logger      *zap.SugaredLogger
}

// NewSanctionsSet creates a set seeded with the given names.
func NewSanctionsSet(names []string, logger *zap.SugaredLogger) *SanctionsSet {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &SanctionsSet{
		names:  make(map[string]struct{}),
		logger: logger,
	}
	s.Replace(names)
	return s
}

// IsSanctioned reports whether the sender display name appears on the list.
func (s *SanctionsSet) IsSanctioned(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[strings.TrimSpace(name)]
	return ok, nil
}

// Replace swaps the full entry set atomically. Blank entries are dropped.
func (s *SanctionsSet) Replace(names []string) {
	next := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		next[n] = struct{}{}
	}

	s.mu.Lock()
	s.names = next
	s.lastUpdated = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Infow("sanctions list replaced", "entries", len(next))
}

// Size returns the current number of entries.
func (s *SanctionsSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// LastUpdated returns when the list was last refreshed.
func (s *SanctionsSet) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}
