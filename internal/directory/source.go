package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"elesrank/internal/config"
	"elesrank/internal/delay"
	"elesrank/internal/ranking"
	logx "elesrank/pkg/logx"
)

// ErrNotReady is returned by Current before the first successful load.
var ErrNotReady = errors.New("directory: not loaded yet")

// Source reads the directory file and publishes snapshots.
type Source struct {
	path string
	log  logx.Logger

	mu    sync.RWMutex
	cur   *Directory
	hash  uint64
	loads uint64

	ready     chan struct{}
	readyOnce sync.Once

	subsMu sync.Mutex
	subs   []chan *Directory
}

func NewSource(path string, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{path: path, log: log, ready: make(chan struct{})}
}

func (s *Source) Path() string { return s.path }

// Ready is closed after the first successful load.
func (s *Source) Ready() <-chan struct{} { return s.ready }

// IsReady reports whether a snapshot is available.
func (s *Source) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Current returns the latest snapshot.
func (s *Source) Current() (*Directory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return nil, ErrNotReady
	}
	return s.cur, nil
}

// Records returns the ranking input for period p from the current snapshot.
func (s *Source) Records(p ranking.Period) ([]ranking.Record, error) {
	d, err := s.Current()
	if err != nil {
		return nil, err
	}
	return d.Rankings(p), nil
}

// Wait blocks until the first snapshot is available or ctx is done.
func (s *Source) Wait(ctx context.Context) (*Directory, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ready:
		return s.Current()
	}
}

// Load reads and decodes the file, swapping the snapshot on success.
// It reports whether the content changed since the last successful load.
func (s *Source) Load(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read directory: %w", err)
	}
	h := config.HashBytes(b)

	s.mu.RLock()
	unchanged := s.cur != nil && h == s.hash
	s.mu.RUnlock()
	if unchanged {
		s.log.Debug("directory unchanged; skipping", logx.String("path", s.path))
		return false, nil
	}

	d, err := Decode(bytes.NewReader(b))
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.cur = d
	s.hash = h
	s.loads++
	loads := s.loads
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	s.publish(d)

	fields := []logx.Field{
		logx.String("path", s.path),
		logx.Int("stations", len(d.Stations)),
		logx.Int("units", len(d.Units)),
		logx.Uint64("loads", loads),
	}
	if d.Orphans > 0 {
		s.log.Warn("directory has units without a known station", append(fields, logx.Int("orphans", d.Orphans))...)
	} else {
		s.log.Info("directory loaded", fields...)
	}
	return true, nil
}

// Subscribe returns a channel receiving every new snapshot. Slow subscribers
// only keep the latest one.
func (s *Source) Subscribe(buffer int) chan *Directory {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *Directory, buffer)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Source) Unsubscribe(ch chan *Directory) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, c := range s.subs {
		if c == ch {
			last := len(s.subs) - 1
			s.subs[i] = s.subs[last]
			s.subs[last] = nil
			s.subs = s.subs[:last]
			close(ch)
			return
		}
	}
}

func (s *Source) publish(d *Directory) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- d:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- d:
			default:
			}
		}
	}
}

// Watch reloads the file when it changes on disk. Bursts of filesystem events
// are coalesced with a postponing delay. It returns when ctx is done.
func (s *Source) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("directory watch: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("directory watch add %s: %w", dir, err)
	}

	reload := delay.New(delay.WithName("directory.reload"), delay.WithLogger(s.log))
	defer reload.Stop()

	s.log.Debug("directory watcher started", logx.String("dir", dir), logx.String("file", file))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("directory watch: events closed")
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			_ = reload.Debounce(func() bool {
				if _, err := s.Load(ctx); err != nil && ctx.Err() == nil {
					s.log.Warn("directory reload failed", logx.String("path", s.path), logx.Err(err))
				}
				return false
			}, debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("directory watch: errors closed")
			}
			if err != nil {
				s.log.Warn("directory watch error", logx.Err(err))
			}
		}
	}
}
