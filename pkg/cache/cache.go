// Package cache keeps binary copies of parsed triple and ratings text so
// repeated runs can skip the text parse.
//
// A cache file is tied to one text source. It is served only while the
// source is not newer than the cache and, when a validator is supplied,
// while its content agrees with what the dataset metadata declares. Any
// other state deletes the cache and its dependents and reparses the text.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/OFFIS-RIT/listenkg/pkg/common"
	"github.com/OFFIS-RIT/listenkg/pkg/loader"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// State is the cache state observed when a load started.
type State int

const (
	// StateNoCache: no cache file existed, the text was parsed.
	StateNoCache State = iota
	// StateFresh: the cache was served without touching the text.
	StateFresh
	// StateStaleByTime: the text was newer than the cache.
	StateStaleByTime
	// StateStaleByMetadata: the cache disagreed with the metadata.
	StateStaleByMetadata
	// StateCorrupt: the cache existed but could not be decoded.
	StateCorrupt
)

func (s State) String() string {
	switch s {
	case StateNoCache:
		return "no_cache"
	case StateFresh:
		return "fresh"
	case StateStaleByTime:
		return "stale_by_time"
	case StateStaleByMetadata:
		return "stale_by_metadata"
	case StateCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Rebuilt reports whether the load had to parse the text source.
func (s State) Rebuilt() bool {
	return s != StateFresh
}

// Validator inspects a decoded cache. A non-nil error marks the cache as
// stale by metadata.
type Validator func(m common.Matrix) error

// Entry describes one text/cache pair. Dependents are caches derived from
// the same preprocessing run; they are deleted together with this one.
type Entry struct {
	TextPath   string
	CachePath  string
	Dependents []string
	Validate   Validator
}

// Result is a loaded matrix and how it was obtained.
type Result struct {
	Matrix common.Matrix
	State  State
}

// Manager loads cache entries. Concurrent loads of the same cache path
// share one execution.
type Manager struct {
	group singleflight.Group
}

func NewManager() *Manager {
	return &Manager{}
}

// Load returns the matrix for entry, from the cache when it is fresh and
// from the text source otherwise. A rebuilt matrix is written back to the
// cache; failing to write it is logged, not returned. A missing text
// source with no usable cache is an error matching loader.ErrMissingSource.
func (m *Manager) Load(ctx context.Context, entry Entry) (Result, error) {
	v, err, _ := m.group.Do(entry.CachePath, func() (any, error) {
		return m.load(ctx, entry)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Inspect reports the state a Load would start from without changing
// anything on disk.
func (m *Manager) Inspect(entry Entry) (State, error) {
	state, _, err := inspect(entry)
	return state, err
}

func inspect(entry Entry) (State, common.Matrix, error) {
	cacheInfo, err := os.Stat(entry.CachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return StateNoCache, common.Matrix{}, nil
	}
	if err != nil {
		return 0, common.Matrix{}, err
	}

	textInfo, err := os.Stat(entry.TextPath)
	switch {
	case err == nil:
		if textInfo.ModTime().After(cacheInfo.ModTime()) {
			return StateStaleByTime, common.Matrix{}, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		// cache without text is served as is
	default:
		return 0, common.Matrix{}, err
	}

	matrix, err := ReadFile(entry.CachePath)
	if err != nil {
		if errors.Is(err, ErrBadCache) {
			return StateCorrupt, common.Matrix{}, nil
		}
		return 0, common.Matrix{}, err
	}

	if entry.Validate != nil {
		if verr := entry.Validate(matrix); verr != nil {
			logger.Warn("[Cache] Cache disagrees with metadata", "cache", entry.CachePath, "err", verr)
			return StateStaleByMetadata, common.Matrix{}, nil
		}
	}
	return StateFresh, matrix, nil
}

func (m *Manager) load(ctx context.Context, entry Entry) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	state, matrix, err := inspect(entry)
	if err != nil {
		return Result{}, err
	}

	switch state {
	case StateFresh:
		logger.Debug("[Cache] Serving cache", "cache", entry.CachePath, "rows", matrix.Rows())
		return Result{Matrix: matrix, State: state}, nil
	case StateNoCache:
		logger.Info("[Cache] No cache, parsing text", "text", entry.TextPath)
	default:
		logger.Warn("[Cache] Invalidating cache", "cache", entry.CachePath, "state", state.String())
		Invalidate(entry)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	matrix, stats, err := loader.ReadMatrix(entry.TextPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", entry.TextPath, err)
	}
	if stats.Skipped > 0 {
		logger.Warn("[Cache] Skipped malformed lines", "text", entry.TextPath, "skipped", stats.Skipped, "lines", stats.Lines)
	}
	if entry.Validate != nil {
		if verr := entry.Validate(matrix); verr != nil {
			logger.Warn("[Cache] Source text disagrees with metadata", "text", entry.TextPath, "err", verr)
		}
	}

	if err := WriteFile(entry.CachePath, matrix); err != nil {
		logger.Error("[Cache] Failed to write cache", "cache", entry.CachePath, "err", err)
	} else {
		logger.Debug("[Cache] Cache written", "cache", entry.CachePath, "rows", matrix.Rows())
	}

	return Result{Matrix: matrix, State: state}, nil
}

// Invalidate deletes the cache file of entry and all of its dependents.
// Deletion failures are logged; the caller always falls through to the
// text source.
func Invalidate(entry Entry) {
	for _, path := range append([]string{entry.CachePath}, entry.Dependents...) {
		err := os.Remove(path)
		switch {
		case err == nil:
			logger.Info("[Cache] Deleted cache", "cache", path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.Error("[Cache] Failed to delete cache", "cache", path, "err", err)
		}
	}
}
