// Package watch implements the debounced watch-mode scheduler described in
// §5: changes enqueue a build reason, at most one build runs at a time, and
// pending reasons coalesce into a single rebuild once the in-flight one
// finishes. A configuration-file change is reported separately so the
// caller can run its own environment reload (dispose caches, re-create
// services, re-subscribe telemetry) before the next build.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"
)

// Reason describes why a build was triggered.
type Reason struct {
	Paths         []string
	ConfigChanged bool
}

func (r *Reason) merge(other Reason) {
	r.Paths = append(r.Paths, other.Paths...)
	r.ConfigChanged = r.ConfigChanged || other.ConfigChanged
}

// BuildFunc runs one pipeline build for reason.
type BuildFunc func(ctx context.Context, reason Reason) error

// ReloadFunc tears down and rebuilds the environment after a
// configuration-file change, before the next BuildFunc call.
type ReloadFunc func(ctx context.Context) error

// Scheduler coalesces filesystem change events into builds, with at most
// one build in flight at a time.
type Scheduler struct {
	Debounce time.Duration
	Build    BuildFunc
	Reload   ReloadFunc

	configPath string

	mu      sync.Mutex
	timer   *time.Timer
	pending *Reason
	running bool

	fpMu         sync.Mutex
	fingerprints map[string][32]byte
}

// NewScheduler constructs a Scheduler. configPath, if non-empty, is
// compared against incoming change paths to detect a configuration-file
// change; debounce of zero uses a 500ms default, matching the teacher's
// policy-reload debounce window.
func NewScheduler(configPath string, debounce time.Duration, build BuildFunc, reload ReloadFunc) *Scheduler {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Scheduler{
		Debounce:     debounce,
		Build:        build,
		Reload:       reload,
		configPath:   configPath,
		fingerprints: make(map[string][32]byte),
	}
}

// Trigger enqueues reason. If no build is running and the debounce window
// has elapsed with no further triggers, a build starts; if a build is
// already running, reason coalesces into the pending reason and a new
// build starts as soon as the current one finishes.
func (s *Scheduler) Trigger(ctx context.Context, reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		s.pending = &Reason{}
	}
	s.pending.merge(reason)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.Debounce, func() { s.fire(ctx) })
}

func (s *Scheduler) fire(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.pending == nil {
		s.mu.Unlock()
		return
	}
	reason := *s.pending
	s.pending = nil
	s.running = true
	s.mu.Unlock()

	s.runOnce(ctx, reason)

	s.mu.Lock()
	s.running = false
	hasPending := s.pending != nil
	s.mu.Unlock()

	// A reason arrived while the build above was running: it coalesced
	// into s.pending instead of starting its own debounce timer (the
	// timer was already consumed by this call), so fire it now.
	if hasPending {
		s.fire(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, reason Reason) {
	if reason.ConfigChanged && s.Reload != nil {
		if err := s.Reload(ctx); err != nil {
			return
		}
	}
	if s.Build != nil {
		_ = s.Build(ctx, reason)
	}
}

// Watch starts an fsnotify watcher over paths (files or directories,
// watched recursively) and runs until ctx is cancelled. Only write/create
// events are treated as change reasons, matching the teacher's filter.
func (s *Scheduler) Watch(ctx context.Context, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					return watcher.Add(p)
				}
				return nil
			})
			continue
		}
		_ = watcher.Add(path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !s.contentChanged(event.Name) {
				continue
			}
			s.Trigger(ctx, Reason{
				Paths:         []string{event.Name},
				ConfigChanged: s.configPath != "" && sameFile(event.Name, s.configPath),
			})
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// contentChanged reports whether path's bytes differ from the last time
// it was seen, fingerprinting with blake2b rather than the sha256 content
// hash internal/cache uses for the transform cache key: this fingerprint
// is a cheap per-event debounce check, not a content-addressed cache key,
// so it trades cryptographic margin for blake2b's faster throughput. A
// path seen for the first time, or one that can no longer be read (now a
// directory, or deleted between the event firing and this read), always
// counts as changed.
func (s *Scheduler) contentChanged(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return true
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	sum := blake2b.Sum256(content)

	s.fpMu.Lock()
	defer s.fpMu.Unlock()
	prev, seen := s.fingerprints[path]
	s.fingerprints[path] = sum
	return !seen || prev != sum
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return absA == absB
}
