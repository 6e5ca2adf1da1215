package plugins

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ArtifactExtension is the file extension recognized as a plugin artifact.
const ArtifactExtension = ".wasm"

var (
	// ErrPluginNotFound indicates no artifact exists for the logical name.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrUnsafeName indicates the logical name contains path separators or
	// parent-directory references and was rejected before touching the
	// filesystem.
	ErrUnsafeName = errors.New("unsafe plugin name")
)

// Entry describes one downloadable plugin artifact.
type Entry struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Store resolves logical plugin names against a single artifact directory.
// Every lookup hits the filesystem fresh; nothing is cached, so listings
// always reflect the directory's current contents.
type Store struct {
	dir string
}

// NewStore creates a store over the given artifact directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the configured artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// CheckDir verifies the artifact directory exists and is a directory.
// Called once at startup; a missing directory is a fatal condition.
func (s *Store) CheckDir() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("plugin directory %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugin directory %s is not a directory", s.dir)
	}
	return nil
}

// List scans the directory and returns the available artifacts sorted by
// logical name.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory %s: %w", s.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ArtifactExtension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     strings.TrimSuffix(de.Name(), ArtifactExtension),
			Filename: de.Name(),
			Size:     info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Open resolves a logical name to its artifact file and returns a reader
// plus the artifact size. Accepts both "key-auth" and "key-auth.wasm"
// forms. Returns ErrUnsafeName for names that could escape the directory
// and ErrPluginNotFound when no matching file exists.
func (s *Store) Open(name string) (io.ReadCloser, int64, error) {
	cleaned, err := SanitizeName(name)
	if err != nil {
		return nil, 0, err
	}

	path := filepath.Join(s.dir, cleaned+ArtifactExtension)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrPluginNotFound, cleaned)
		}
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s", ErrPluginNotFound, cleaned)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, info.Size(), nil
}

// SanitizeName validates a logical plugin name from an untrusted URL
// segment. A trailing artifact extension is stripped; names containing
// path separators, parent-directory references, or NUL bytes are rejected.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSuffix(name, ArtifactExtension)
	if name == "" {
		return "", ErrUnsafeName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", ErrUnsafeName
	}
	// With separators rejected, interior dots cannot traverse; only the
	// bare dot names refer outside the directory.
	if name == "." || name == ".." {
		return "", ErrUnsafeName
	}
	return name, nil
}
