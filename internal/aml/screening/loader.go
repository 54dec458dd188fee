package screening

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileLoader refreshes a SanctionsSet from a newline-delimited list file.
// Lines starting with '#' are comments. List maintenance itself (OFAC/UN/EU
// feeds, dedup, transliteration) happens upstream; this loader only picks
// up the already-consolidated file.
type FileLoader struct {
	path     string
	interval time.Duration
	set      *SanctionsSet
	logger   *zap.SugaredLogger
}

// NewFileLoader creates a loader for the given consolidated list file.
func NewFileLoader(path string, interval time.Duration, set *SanctionsSet, logger *zap.SugaredLogger) *FileLoader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileLoader{path: path, interval: interval, set: set, logger: logger}
}

// Load reads the file once and replaces the set contents.
func (l *FileLoader) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open sanctions list %s: %w", l.path, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read sanctions list %s: %w", l.path, err)
	}

	l.set.Replace(names)
	return nil
}

// Run reloads the list on the configured interval until ctx is cancelled.
// A failed reload keeps the previous entries; an empty list would fail open
// on every sanctions check.
func (l *FileLoader) Run(ctx context.Context) {
	if l.interval <= 0 {
		return
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Load(); err != nil {
				l.logger.Errorw("sanctions list reload failed", "error", err)
			}
		}
	}
}
