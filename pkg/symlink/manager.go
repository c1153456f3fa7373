package symlink

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
)

// Characters that never belong in a symlink leaf name, plus whitespace.
// A run of any of them collapses to a single underscore.
var unsafeRuns = regexp.MustCompile(`[<>:"/\\|?*\s]+`)

// Manager maintains symbolic links that expose volatile mount paths (GVFS
// paths vary per mount) at stable locations under a base directory. It
// tracks which links it created so shutdown can clean up, but existence
// checks always go to the filesystem: the record is a cleanup hint, not
// the source of truth.
type Manager struct {
	baseDir string

	mu      sync.Mutex
	records map[string]string // URI -> absolute link path created by us
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir: baseDir,
		records: make(map[string]string),
	}
}

func (m *Manager) BaseDir() string { return m.baseDir }

// DesiredPath returns baseDir/leaf for a bookmark. The leaf is the
// configured override when set, otherwise the sanitized display name.
// Pure: same bookmark and base dir always produce the same path.
func (m *Manager) DesiredPath(b *types.Bookmark) string {
	leaf := b.SymlinkPath
	if leaf == "" {
		leaf = SanitizeName(b.DisplayName())
	} else {
		leaf = SanitizeName(leaf)
	}
	return filepath.Join(m.baseDir, leaf)
}

// SanitizeName makes a bookmark name safe to use as a filesystem leaf:
// runs of  < > : " / \ | ? *  and whitespace become single underscores,
// and leading/trailing underscores are trimmed.
func SanitizeName(name string) string {
	s := unsafeRuns.ReplaceAllString(name, "_")
	return strings.Trim(s, "_")
}

// Ensure creates or repairs the symlink for a bookmark, pointing at the
// live resolved mount path. No-op when the bookmark doesn't want a symlink.
// An existing symlink at the desired path is replaced; a real file or
// directory there is a conflict and is never deleted.
func (m *Manager) Ensure(b *types.Bookmark, realMountPath string) error {
	if !b.CreateSymlink {
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return err
	}

	path := m.DesiredPath(b)

	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return &types.ErrSymlinkConflict{Path: path}
		}
		if target, err := os.Readlink(path); err == nil && target == realMountPath {
			m.record(b.URI, path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	if err := os.Symlink(realMountPath, path); err != nil {
		return err
	}

	m.record(b.URI, path)
	log.Debug().Str("uri", b.URI).Str("link", path).Str("target", realMountPath).Msg("symlink ensured")
	return nil
}

// Remove deletes the bookmark's symlink if one exists. The link is located
// via the tracked record or, failing that, by recomputing the desired path.
// Only confirmed symlinks are deleted. The record is cleared regardless of
// the deletion outcome. Idempotent.
func (m *Manager) Remove(b *types.Bookmark) error {
	m.mu.Lock()
	path, ok := m.records[b.URI]
	delete(m.records, b.URI)
	m.mu.Unlock()

	if !ok {
		path = m.DesiredPath(b)
	}
	return removeIfSymlink(path)
}

// RemoveAll deletes every tracked symlink. Used at shutdown; errors are
// collected so one failed removal doesn't stop the rest.
func (m *Manager) RemoveAll() error {
	m.mu.Lock()
	paths := make([]string, 0, len(m.records))
	for _, p := range m.records {
		paths = append(paths, p)
	}
	m.records = make(map[string]string)
	m.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := removeIfSymlink(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tracked returns the number of symlinks currently on record.
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Manager) record(uri, path string) {
	m.mu.Lock()
	m.records[uri] = path
	m.mu.Unlock()
}

func removeIfSymlink(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return nil // already gone
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return nil // never delete a real file or directory
	}
	return os.Remove(path)
}
