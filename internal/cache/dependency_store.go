package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// DependencyStore persists the last committed pointer->hash table as a
// single content-addressed JSON file, per §4.3. Evaluate never mutates
// persisted state; only Commit does, and only the orchestrator calls
// Commit, after every downstream stage has succeeded.
type DependencyStore struct {
	mu   sync.Mutex
	path string

	// cachedPrevious holds the last snapshot read or committed, so that a
	// failed build's Evaluate doesn't need to re-read disk on the next
	// run within the same process.
	cachedPrevious *dtif.DependencySnapshot
}

// NewDependencyStore returns a store backed by the JSON file at path (e.g.
// ".dtifx-cache/dependencies/snapshot.json").
func NewDependencyStore(path string) *DependencyStore {
	return &DependencyStore{path: path}
}

func (s *DependencyStore) loadPrevious() (*dtif.DependencySnapshot, error) {
	if s.cachedPrevious != nil {
		return s.cachedPrevious, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		empty := &dtif.DependencySnapshot{Version: 1, Entries: nil}
		s.cachedPrevious = empty
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	var snap dtif.DependencySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt store file is treated the same as "no previous
		// snapshot": every pointer is considered changed on this run.
		empty := &dtif.DependencySnapshot{Version: 1, Entries: nil}
		s.cachedPrevious = empty
		return empty, nil
	}
	s.cachedPrevious = &snap
	return &snap, nil
}

// Evaluate computes the diff between the stored snapshot and next, without
// persisting anything.
func (s *DependencyStore) Evaluate(next dtif.DependencySnapshot) (dtif.DependencyDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.loadPrevious()
	if err != nil {
		return dtif.DependencyDiff{}, err
	}

	prevHashes := make(map[string]string, len(prev.Entries))
	for _, e := range prev.Entries {
		prevHashes[e.Pointer] = e.Hash
	}
	nextHashes := make(map[string]string, len(next.Entries))
	for _, e := range next.Entries {
		nextHashes[e.Pointer] = e.Hash
	}

	changed := make(map[string]struct{})
	removed := make(map[string]struct{})

	for p, h := range nextHashes {
		if prevH, ok := prevHashes[p]; !ok || prevH != h {
			changed[p] = struct{}{}
		}
	}
	for p := range prevHashes {
		if _, ok := nextHashes[p]; !ok {
			removed[p] = struct{}{}
			changed[p] = struct{}{} // removed pointers force invalidation too
		}
	}

	return dtif.DependencyDiff{Changed: changed, Removed: removed}, nil
}

// Commit atomically replaces the stored snapshot (write-temp + rename) and
// updates the in-memory cache used by subsequent Evaluate calls in this
// process.
func (s *DependencyStore) Commit(snapshot dtif.DependencySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.cachedPrevious = &snapshot
	return nil
}
