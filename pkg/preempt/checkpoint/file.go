package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	perrors "github.com/randalmurphal/preempt/pkg/preempt/errors"
)

// Ext is the filename suffix of a committed checkpoint.
const Ext = ".ckpt"

// tmpExt marks an in-flight write. A file carrying this suffix is part of
// the write protocol, never a committed checkpoint.
const tmpExt = ".tmp"

// FileStore persists checkpoints as files named
// <dir>/<subdir>/<runID>_<step, zero-padded>.ckpt.
//
// Each save writes to a temporary path and commits with a single atomic
// rename, so the canonical path is either absent or a fully written
// checkpoint at every externally observable instant. Latest-selection is by
// the numeric step suffix, never by modification time.
type FileStore struct {
	dir    string
	subdir string
	mu     sync.Mutex
	closed bool
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSubdir nests checkpoints under a named subdirectory of the store
// root, typically the scheduler job ID. When unset, checkpoints are
// grouped under the current date.
func WithSubdir(name string) FileOption {
	return func(s *FileStore) { s.subdir = name }
}

// NewFileStore creates a file-backed checkpoint store rooted at dir.
// Directories are created lazily on first save.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve checkpoint directory: %w", err)
	}

	s := &FileStore{
		dir:    abs,
		subdir: time.Now().Format("2006-01-02"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the canonical path for (runID, step).
// The step is zero-padded so lexical and numeric ordering agree.
func (s *FileStore) Path(runID string, step int) string {
	return filepath.Join(s.dir, s.subdir, fmt.Sprintf("%s_%08d%s", runID, step, Ext))
}

// Save implements Store.
func (s *FileStore) Save(runID string, step int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	path := s.Path(runID, step)

	// The directory may have been pre-created by the operator without
	// write permission on the parent, so only create it when missing.
	parent := filepath.Dir(path)
	if _, err := os.Stat(parent); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return &perrors.PersistenceError{Op: "mkdir", Path: parent, Err: err}
		}
	}

	tmp := path + tmpExt
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &perrors.PersistenceError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &perrors.PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(runID string, step int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.read(s.Path(runID, step))
}

// LoadLatest implements Store.
func (s *FileStore) LoadLatest(runID string) (Info, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Info{}, nil, ErrStoreClosed
	}

	infos, err := s.list(runID)
	if err != nil {
		return Info{}, nil, err
	}
	if len(infos) == 0 {
		return Info{}, nil, ErrNotFound
	}

	latest := infos[len(infos)-1]
	data, err := s.read(latest.Path)
	if err != nil {
		return Info{}, nil, err
	}
	return latest, data, nil
}

// List implements Store. Results are ordered by step index.
func (s *FileStore) List(runID string) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.list(runID)
}

// Enumerate returns the paths of all existing checkpoints for a run,
// across every job subdirectory of the store root. Unordered.
func (s *FileStore) Enumerate(runID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.glob(runID + "_*" + Ext)
}

// Prune implements Store.
//
// Every deletion candidate is validated before anything is removed: a file
// matching the run prefix that lacks the checkpoint suffix, or whose step
// index does not parse, aborts the whole batch with an IntegrityError.
// In-flight temporary files are not deletion candidates.
func (s *FileStore) Prune(runID string, keepLatest bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	candidates, err := s.glob(runID + "_*")
	if err != nil {
		return err
	}

	type target struct {
		path string
		step int
	}
	targets := make([]target, 0, len(candidates))
	maxStep := -1

	for _, path := range candidates {
		if strings.HasSuffix(path, tmpExt) {
			continue
		}
		if !strings.HasSuffix(path, Ext) {
			return &perrors.IntegrityError{Path: path, Reason: "not a " + Ext + " file"}
		}
		step, err := parseStep(path)
		if err != nil {
			return &perrors.IntegrityError{Path: path, Reason: "unparseable step index"}
		}
		targets = append(targets, target{path: path, step: step})
		if step > maxStep {
			maxStep = step
		}
	}

	for _, t := range targets {
		if keepLatest && t.step == maxStep {
			continue
		}
		if err := os.Remove(t.path); err != nil {
			return &perrors.PersistenceError{Op: "remove", Path: t.path, Err: err}
		}
	}
	return nil
}

// RunIDs returns the IDs of runs with at least one checkpoint in the store.
func (s *FileStore) RunIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	paths, err := s.glob("*" + Ext)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), Ext)
		i := strings.LastIndex(name, "_")
		if i <= 0 {
			continue
		}
		id := name[:i]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// glob matches pattern in every subdirectory of the store root.
func (s *FileStore) glob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*", pattern))
	if err != nil {
		return nil, &perrors.PersistenceError{Op: "enumerate", Path: s.dir, Err: err}
	}
	return paths, nil
}

// list returns Info for all checkpoints of a run, ordered by step.
func (s *FileStore) list(runID string) ([]Info, error) {
	paths, err := s.glob(runID + "_*" + Ext)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(paths))
	for _, path := range paths {
		step, err := parseStep(path)
		if err != nil {
			// Not one of ours; latest-selection must not trip over it.
			continue
		}
		info := Info{RunID: runID, Step: step, Path: path}
		if fi, err := os.Stat(path); err == nil {
			info.SavedAt = fi.ModTime()
			info.Size = fi.Size()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Step < infos[j].Step
	})
	return infos, nil
}

// read loads a committed checkpoint file.
func (s *FileStore) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &perrors.PersistenceError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// parseStep extracts the numeric step index from a checkpoint filename.
func parseStep(path string) (int, error) {
	name := strings.TrimSuffix(filepath.Base(path), Ext)
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return 0, fmt.Errorf("no step suffix in %q", name)
	}
	return strconv.Atoi(name[i+1:])
}
