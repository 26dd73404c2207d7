// Package dependency computes dependency snapshots from resolved token
// snapshots and evaluates/commits them against the dependency snapshot
// store (component D, internal/cache).
package dependency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// Tracker wraps a cache.DependencyStore with the hashing rule from §4.6.
type Tracker struct {
	store *cache.DependencyStore
}

// NewTracker constructs a Tracker backed by store.
func NewTracker(store *cache.DependencyStore) *Tracker {
	return &Tracker{store: store}
}

// metadataSubset is the canonical projection of a snapshot's metadata used
// in its content hash: type, deprecated, $hash, extensions, description.
type metadataSubset struct {
	Type        string                        `json:"type"`
	Deprecated  *dtif.Deprecation             `json:"deprecated,omitempty"`
	Hash        string                        `json:"hash,omitempty"`
	Extensions  map[string]map[string]any     `json:"extensions,omitempty"`
	Description string                        `json:"description,omitempty"`
}

// SnapshotHash computes the stable content digest for snap, per §4.6:
// sha256(canonical_json(value) || canonical_json(metadata_subset)), hex.
func SnapshotHash(snap *dtif.TokenSnapshot) (string, error) {
	valueJSON, err := canonicalJSON(snap.Resolution.Value)
	if err != nil {
		return "", err
	}

	subset := metadataSubset{Type: snap.Token.Type}
	if snap.Metadata != nil {
		subset.Deprecated = snap.Metadata.Deprecated
		subset.Hash = snap.Metadata.Hash
		subset.Extensions = snap.Metadata.Extensions
		subset.Description = snap.Metadata.Description
	}
	metaJSON, err := canonicalJSON(subset)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(valueJSON)
	h.Write(metaJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON produces strict key-sorted JSON with stable number
// formatting by round-tripping through a generic decode: encoding/json
// already sorts map keys when marshalling, which gives us key-sorted
// output for free; we only need to normalise numeric formatting by
// decoding through json.Number-free float64, the same representation Go's
// encoder re-serialises deterministically.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}

// BuildSnapshot computes a dtif.DependencySnapshot from resolved
// snapshots, sorted by pointer for deterministic output.
func BuildSnapshot(snapshots []*dtif.TokenSnapshot) (dtif.DependencySnapshot, error) {
	entries := make([]dtif.DependencySnapshotEntry, 0, len(snapshots))
	for _, snap := range snapshots {
		hash, err := SnapshotHash(snap)
		if err != nil {
			return dtif.DependencySnapshot{}, err
		}
		entries = append(entries, dtif.DependencySnapshotEntry{Pointer: snap.Pointer, Hash: hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Pointer < entries[j].Pointer })
	return dtif.DependencySnapshot{Version: 1, ResolvedAt: time.Now(), Entries: entries}, nil
}

// Evaluate computes the new dependency snapshot from snapshots and diffs it
// against the store without persisting.
func (t *Tracker) Evaluate(snapshots []*dtif.TokenSnapshot) (dtif.DependencySnapshot, dtif.DependencyDiff, error) {
	next, err := BuildSnapshot(snapshots)
	if err != nil {
		return dtif.DependencySnapshot{}, dtif.DependencyDiff{}, err
	}
	diff, err := t.store.Evaluate(next)
	if err != nil {
		return dtif.DependencySnapshot{}, dtif.DependencyDiff{}, err
	}
	return next, diff, nil
}

// Commit persists snapshot. Only the orchestrator should call this, and
// only after every downstream stage has succeeded.
func (t *Tracker) Commit(snapshot dtif.DependencySnapshot) error {
	return t.store.Commit(snapshot)
}
