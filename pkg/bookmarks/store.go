package bookmarks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
)

// Schemes that point at the local filesystem. Lines using them are not
// network bookmarks and are skipped on load.
var localSchemes = map[string]bool{
	"file":   true,
	"trash":  true,
	"recent": true,
}

// Store reads the bookmarks file (desired state) and persists per-bookmark
// settings as JSON. The bookmarks file is the source of truth for URIs and
// display names; the settings file only carries user-configurable overrides.
type Store struct {
	bookmarksPath string
	settingsPath  string
}

func NewStore(bookmarksPath, settingsPath string) *Store {
	return &Store{bookmarksPath: bookmarksPath, settingsPath: settingsPath}
}

func (s *Store) BookmarksPath() string { return s.bookmarksPath }
func (s *Store) SettingsPath() string  { return s.settingsPath }

// Load parses the bookmarks file. Each non-empty line of the form
// "<uri> [<display name>]" with a remote scheme becomes a Bookmark with
// defaults (enabled, no symlink). Malformed or local-filesystem lines are
// skipped. A missing file yields an empty list.
func (s *Store) Load() ([]*types.Bookmark, error) {
	f, err := os.Open(s.bookmarksPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", s.bookmarksPath).Msg("bookmarks file does not exist")
			return nil, nil
		}
		return nil, fmt.Errorf("open bookmarks: %w", err)
	}
	defer f.Close()

	var list []*types.Bookmark
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if b := parseLine(scanner.Text()); b != nil {
			list = append(list, b)
		}
	}
	if err := scanner.Err(); err != nil {
		return list, fmt.Errorf("read bookmarks: %w", err)
	}
	return list, nil
}

func parseLine(line string) *types.Bookmark {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	uri := line
	name := ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		uri = line[:i]
		name = strings.TrimSpace(line[i+1:])
	}

	scheme, _, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" || localSchemes[strings.ToLower(scheme)] {
		return nil
	}

	b := &types.Bookmark{
		URI:     strings.TrimSuffix(uri, "/"),
		Name:    name,
		Enabled: true,
	}
	if b.Name == "" {
		b.Name = types.NameFromURI(b.URI)
	}
	return b
}

// ApplySettings overlays persisted per-bookmark settings onto freshly loaded
// bookmarks, keyed by URI. Bookmarks without a persisted entry keep their
// defaults. Fail tracking is runtime state and is never touched here.
func (s *Store) ApplySettings(list []*types.Bookmark, settings map[string]types.BookmarkSettings) {
	for _, b := range list {
		if st, ok := settings[b.URI]; ok {
			b.Enabled = st.Enabled
			b.CreateSymlink = st.CreateSymlink
			b.SymlinkPath = st.SymlinkPath
		}
	}
}

// ProjectSettings extracts only the user-configurable fields for persistence.
func (s *Store) ProjectSettings(list []*types.Bookmark) map[string]types.BookmarkSettings {
	out := make(map[string]types.BookmarkSettings, len(list))
	for _, b := range list {
		out[b.URI] = types.BookmarkSettings{
			Enabled:       b.Enabled,
			CreateSymlink: b.CreateSymlink,
			SymlinkPath:   b.SymlinkPath,
		}
	}
	return out
}

// LoadSettings reads the settings JSON. Malformed content is non-fatal: an
// empty map is returned along with a diagnostic error so the caller can log
// it and proceed with defaults.
func (s *Store) LoadSettings() (map[string]types.BookmarkSettings, error) {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.BookmarkSettings{}, nil
		}
		return map[string]types.BookmarkSettings{}, fmt.Errorf("read settings: %w", err)
	}

	var settings map[string]types.BookmarkSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return map[string]types.BookmarkSettings{}, fmt.Errorf("parse settings %s: %w", s.settingsPath, err)
	}
	if settings == nil {
		settings = map[string]types.BookmarkSettings{}
	}
	return settings, nil
}

// SaveSettings writes the settings JSON atomically (temp file then rename).
func (s *Store) SaveSettings(settings map[string]types.BookmarkSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.settingsPath), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp := s.settingsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.settingsPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
