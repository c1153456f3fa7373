package types

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// Bookmark is a configured remote location plus its auto-mount and symlink
// preferences. The URI is the identity and is immutable once loaded.
type Bookmark struct {
	URI           string `json:"uri"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	CreateSymlink bool   `json:"create_symlink"`
	SymlinkPath   string `json:"symlink_path"` // optional leaf-name override, relative to the mount base dir
}

// BookmarkSettings is the persisted, user-configurable projection of a
// Bookmark. Fail tracking is runtime-only and never serialized.
type BookmarkSettings struct {
	Enabled       bool   `json:"enabled"`
	CreateSymlink bool   `json:"createSymlink"`
	SymlinkPath   string `json:"symlinkPath"`
}

// FailState tracks consecutive mount failures for a URI. Keyed by URI in the
// controller so it survives bookmark reloads.
type FailState struct {
	Count       int
	LastAttempt time.Time
}

// DisplayName returns the bookmark's name, deriving one from the URI when
// the bookmarks file carried no label.
func (b *Bookmark) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return NameFromURI(b.URI)
}

// NameFromURI derives a human-readable label from a remote URI: the last
// path element when present, otherwise the host.
func NameFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	if leaf := path.Base(u.Path); leaf != "" && leaf != "/" && leaf != "." {
		return leaf
	}
	if u.Host != "" {
		return u.Host
	}
	return strings.TrimSuffix(uri, "/")
}
