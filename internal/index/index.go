// Package index keeps an in-memory mirror of a JSON document on disk that maps
// canonical keys to captured values. Keys are written once: the first value
// stored under a key wins and later values are discarded.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/jsonstore"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Options tune how an Index is opened.
type Options struct {
	// Name labels the index in logs and metrics.
	Name   string
	Logger *zap.Logger
	// Clock stamps backups of unreadable documents. Defaults to UTC wall time.
	Clock Clock
}

// Index owns the mapping for one document. It is safe for concurrent use;
// all writes go through a single lock so whole-document rewrites never
// interleave.
type Index struct {
	mu     sync.RWMutex
	path   string
	name   string
	data   map[string]json.RawMessage
	logger *zap.Logger
}

// Open loads the document at path, creating it when absent. A document that
// cannot be parsed is copied aside and the index starts empty.
func Open(path string, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" {
		name = path
	}
	logger = logger.With(zap.String("index", name), zap.String("path", path))

	if err := jsonstore.EnsurePathExists(path); err != nil {
		return nil, fmt.Errorf("ensure index path: %w", err)
	}
	data, err := jsonstore.Read(path, map[string]json.RawMessage{})
	switch {
	case err == nil:
	case errors.Is(err, jsonstore.ErrCorrupt):
		backup, bErr := jsonstore.Backup(path, backupSuffix(opts.Clock))
		if bErr != nil {
			return nil, fmt.Errorf("back up corrupt index: %w", bErr)
		}
		logger.Warn("index document unreadable; starting empty",
			zap.String("backup", backup),
			zap.Error(err),
		)
		data = map[string]json.RawMessage{}
	default:
		return nil, fmt.Errorf("load index: %w", err)
	}
	if data == nil {
		// A literal "null" document decodes to a nil map.
		data = map[string]json.RawMessage{}
	}

	logger.Info("index loaded", zap.Int("entries", len(data)))
	return &Index{
		path:   path,
		name:   name,
		data:   data,
		logger: logger,
	}, nil
}

// Name reports the label the index was opened with.
func (ix *Index) Name() string {
	return ix.name
}

// Path reports the backing document location.
func (ix *Index) Path() string {
	return ix.path
}

// Get returns the stored value for key.
func (ix *Index) Get(key string) (json.RawMessage, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	v, ok := ix.data[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}

// Has reports whether key is present.
func (ix *Index) Has(key string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.data[key]
	return ok
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.data)
}

// Keys returns all keys in lexical order.
func (ix *Index) Keys() []string {
	ix.mu.RLock()
	keys := make([]string, 0, len(ix.data))
	for k := range ix.data {
		keys = append(keys, k)
	}
	ix.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Add stores value under key unless the key already exists. It reports
// whether the value was stored. Once Add returns true the entry is on disk.
// When persisting fails the entry is removed again and the error returned.
func (ix *Index) Add(key string, value json.RawMessage) (bool, error) {
	if !json.Valid(value) {
		return false, fmt.Errorf("value for %q is not valid JSON", key)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.data[key]; exists {
		return false, nil
	}
	ix.data[key] = append(json.RawMessage(nil), value...)
	if err := jsonstore.Write(ix.path, ix.data); err != nil {
		delete(ix.data, key)
		return false, fmt.Errorf("persist index: %w", err)
	}
	return true, nil
}

// Results decodes the "results" list stored under key. Absent keys, entries
// that are not objects, and missing or non-list fields all yield nil.
func (ix *Index) Results(key string) []json.RawMessage {
	raw, ok := ix.Get(key)
	if !ok {
		return nil
	}
	var entry struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil
	}
	return entry.Results
}

func backupSuffix(clock Clock) string {
	now := time.Now()
	if clock != nil {
		now = clock.Now()
	}
	return now.UTC().Format("20060102T150405Z")
}
