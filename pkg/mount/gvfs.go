package mount

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// GvfsDir returns the per-user GVFS FUSE directory where gvfsd-fuse exposes
// active mounts ($XDG_RUNTIME_DIR/gvfs, typically /run/user/<uid>/gvfs).
func GvfsDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "gvfs")
	}
	return fmt.Sprintf("/run/user/%d/gvfs", os.Getuid())
}

// gvfsName derives the GVFS directory entry name for a remote URI, e.g.
// smb://server/share -> "smb-share:server=server,share=share". The result is
// used as a prefix match against the gvfs dir, so trailing attributes gvfs
// appends (user=, domain=) don't have to be reproduced exactly.
func gvfsName(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())

	switch u.Scheme {
	case "smb":
		share, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if share == "" {
			return "", false
		}
		return fmt.Sprintf("smb-share:server=%s,share=%s", host, strings.ToLower(share)), true
	case "sftp", "ssh":
		name := "sftp:host=" + host
		if port := u.Port(); port != "" && port != "22" {
			name += ",port=" + port
		}
		if user := u.User.Username(); user != "" {
			name += ",user=" + user
		}
		return name, true
	case "ftp", "ftps":
		name := u.Scheme + ":host=" + host
		if user := u.User.Username(); user != "" {
			name += ",user=" + user
		}
		return name, true
	case "dav", "davs":
		return "dav:host=" + host, true
	case "nfs":
		return "nfs:host=" + host, true
	default:
		return u.Scheme + ":host=" + host, true
	}
}
