// Package words owns the shared pool of secret words. The pool is loaded
// from a CSV file at startup, can grow at runtime through Add, and follows
// edits to the backing file via Watch.
package words

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/random"
)

var (
	// ErrEmptyPool reports a draw against a pool with no words in it.
	ErrEmptyPool = errors.New("word pool is empty")
	// ErrDuplicateWord reports an Add of a word already in the pool.
	ErrDuplicateWord = errors.New("word already in the pool")
	// ErrInvalidWord reports an Add of a blank or malformed word.
	ErrInvalidWord = errors.New("invalid word")
)

// A draw that keeps hitting the excluded word is re-rolled this many times
// before falling back to a deterministic scan.
const maxDrawAttempts = 16

// Supplier hands out round words. All methods are safe for concurrent use.
type Supplier struct {
	mu   sync.RWMutex
	pool []string
	seen map[string]struct{} // lowercased index over pool

	path string
	log  *zap.Logger

	draw func(n int) (int, error)
}

// Load reads the CSV file at path and returns a ready Supplier. Every field
// of every record is one candidate word; blanks are skipped and duplicates
// are folded case-insensitively. An unreadable file is an error; callers
// are expected to treat that as fatal at startup.
func Load(path string, log *zap.Logger) (*Supplier, error) {
	s := &Supplier{path: path, log: log, draw: random.Index}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Supplier) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open word file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	pool := make([]string, 0, 128)
	seen := make(map[string]struct{}, 128)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read word file: %w", err)
		}
		for _, field := range record {
			w := strings.TrimSpace(field)
			if w == "" {
				continue
			}
			key := strings.ToLower(w)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, w)
		}
	}

	s.mu.Lock()
	s.pool, s.seen = pool, seen
	s.mu.Unlock()

	s.log.Info("word pool loaded",
		zap.Int("words", len(pool)),
		zap.String("file", s.path))
	return nil
}

// PickNext draws one word uniformly at random, re-rolling while the draw
// matches exclude. A pool of one word cannot honor the exclusion and returns
// its only word as-is; an empty pool returns ErrEmptyPool.
func (s *Supplier) PickNext(exclude string) (string, error) {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()

	if len(pool) == 0 {
		return "", ErrEmptyPool
	}
	if len(pool) == 1 {
		return pool[0], nil
	}

	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		i, err := s.draw(len(pool))
		if err != nil {
			return "", fmt.Errorf("draw word: %w", err)
		}
		if pool[i] != exclude {
			return pool[i], nil
		}
	}

	// Sixteen straight collisions against one excluded word means the
	// entropy source is misbehaving; pick the first non-excluded word.
	for _, w := range pool {
		if w != exclude {
			return w, nil
		}
	}
	return pool[0], nil
}

// Has reports whether word is already in the pool, compared
// case-insensitively after trimming.
func (s *Supplier) Has(word string) bool {
	key := strings.ToLower(strings.TrimSpace(word))
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

// Len returns the current pool size.
func (s *Supplier) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pool)
}

// Add validates word, appends it to the backing file and then to the
// in-memory pool. The pool is only extended once the file write succeeded,
// so a crash never leaves an in-memory word that the next boot would lose.
func (s *Supplier) Add(word string) error {
	w := strings.TrimSpace(word)
	if w == "" || !utf8.ValidString(w) {
		return ErrInvalidWord
	}
	key := strings.ToLower(w)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[key]; dup {
		return ErrDuplicateWord
	}
	if err := s.appendToFile(w); err != nil {
		return err
	}
	s.seen[key] = struct{}{}
	s.pool = append(s.pool, w)

	s.log.Info("word added to pool", zap.String("word", w), zap.Int("words", len(s.pool)))
	return nil
}

func (s *Supplier) appendToFile(w string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open word file for append: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{w}); err != nil {
		return fmt.Errorf("append word: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Watch reloads the pool whenever the backing file changes on disk, until
// ctx is canceled. The parent directory is watched rather than the file so
// editors that replace-by-rename still trigger a reload. Reload failures
// are logged and the previous pool stays in effect.
func (s *Supplier) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start word file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Info("watching word file", zap.String("file", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Warn("word pool reload failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("word file watcher error", zap.Error(err))
		}
	}
}
