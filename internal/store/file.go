package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"aishi/internal/chain"
)

// ErrLocked is returned when another process holds the data directory.
var ErrLocked = errors.New("data directory is in use by another process")

// GetDataDir returns the OS-appropriate base directory for aishi data.
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot get home directory: %w", err)
		}
		baseDir = filepath.Join(home, "Library", "Application Support", "aishi")

	case "windows":
		appData := os.Getenv("AppData")
		if appData == "" {
			return "", errors.New("AppData environment variable not set")
		}
		baseDir = filepath.Join(appData, "aishi")

	default: // Linux and other Unix-like systems
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			baseDir = filepath.Join(xdgDataHome, "aishi")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot get home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".local", "share", "aishi")
		}
	}

	return baseDir, nil
}

// FileStore keeps one JSON file per token under <dir>/tokens and the
// registry metadata in <dir>/registry.json. It holds an exclusive lock on
// <dir>/.lock until Close, so one process at a time owns the directory.
type FileStore struct {
	dir  string
	lock *flock.Flock

	// rename replaces staged files; tests swap it to inject failures.
	rename func(oldpath, newpath string) error
}

type registryFile struct {
	NextID uint64                     `json:"next_id"`
	Roles  map[string][]chain.Address `json:"roles"`
}

// NewFileStore opens (creating if needed) a file store rooted at dir.
// An empty dir selects GetDataDir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		var err error
		dir, err = GetDataDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Join(dir, "tokens"), 0700); err != nil {
		return nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot lock data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}

	return &FileStore{dir: dir, lock: lock, rename: os.Rename}, nil
}

// Dir returns the store root.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) Load(ctx context.Context) (*State, error) {
	reg, err := f.readRegistry()
	if err != nil {
		return nil, err
	}
	st := &State{NextID: reg.NextID, Roles: reg.Roles}

	entries, err := os.ReadDir(filepath.Join(f.dir, "tokens"))
	if err != nil {
		return nil, fmt.Errorf("cannot read token directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := loadToken(filepath.Join(f.dir, "tokens", entry.Name()))
		if err != nil {
			return nil, err
		}
		st.Tokens = append(st.Tokens, rec)
	}

	normalize(st)
	return st, nil
}

// Apply stages every file as a temp file, then renames token files and
// registry metadata last. A failure before the final rename restores the
// previous token files, so Load sees the state from before the call.
func (f *FileStore) Apply(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reg := registryFile{NextID: change.NextID, Roles: change.Roles}
	if change.Roles == nil {
		current, err := f.readRegistry()
		if err != nil {
			return err
		}
		reg.Roles = current.Roles
	}

	var staged []stagedFile
	discard := func() {
		for _, sf := range staged {
			os.Remove(sf.tmp)
		}
	}

	for _, rec := range change.Tokens {
		if err := ctx.Err(); err != nil {
			discard()
			return err
		}
		sf, err := stageJSON(f.tokenPath(rec.ID), rec)
		if err != nil {
			discard()
			return err
		}
		staged = append(staged, sf)
	}

	regFile, err := stageJSON(filepath.Join(f.dir, "registry.json"), reg)
	if err != nil {
		discard()
		return err
	}
	staged = append(staged, regFile)

	for i, sf := range staged {
		if err := f.rename(sf.tmp, sf.path); err != nil {
			restore(staged[:i])
			for _, rest := range staged[i:] {
				os.Remove(rest.tmp)
			}
			return fmt.Errorf("failed to update %s: %w", filepath.Base(sf.path), err)
		}
	}

	return nil
}

func (f *FileStore) Close() error {
	if f.lock == nil {
		return nil
	}
	return f.lock.Unlock()
}

// stagedFile is a temp file waiting to replace path, with path's previous
// contents (nil if it did not exist).
type stagedFile struct {
	path string
	tmp  string
	prev []byte
}

func stageJSON(path string, v any) (stagedFile, error) {
	sf := stagedFile{path: path, tmp: path + ".tmp"}

	prev, err := os.ReadFile(path)
	switch {
	case err == nil:
		sf.prev = prev
	case !os.IsNotExist(err):
		return sf, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sf, fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(sf.tmp, data, 0600); err != nil {
		os.Remove(sf.tmp)
		return sf, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return sf, nil
}

// restore puts back the previous contents of files already renamed.
func restore(done []stagedFile) {
	for i := len(done) - 1; i >= 0; i-- {
		sf := done[i]
		if sf.prev == nil {
			os.Remove(sf.path)
			continue
		}
		if err := os.WriteFile(sf.tmp, sf.prev, 0600); err == nil {
			os.Rename(sf.tmp, sf.path)
		}
	}
}

func (f *FileStore) readRegistry() (registryFile, error) {
	var reg registryFile

	data, err := os.ReadFile(filepath.Join(f.dir, "registry.json"))
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return reg, fmt.Errorf("failed to read registry metadata: %w", err)
	}

	if err := json.Unmarshal(data, &reg); err != nil {
		return reg, fmt.Errorf("failed to parse registry metadata: %w", err)
	}
	return reg, nil
}

func (f *FileStore) tokenPath(id uint64) string {
	return filepath.Join(f.dir, "tokens", strconv.FormatUint(id, 10)+".json")
}

// loadToken loads and parses one token file.
func loadToken(path string) (TokenRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("failed to read token: %w", err)
	}

	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TokenRecord{}, fmt.Errorf("failed to parse token %s: %w", filepath.Base(path), err)
	}

	return rec, nil
}
