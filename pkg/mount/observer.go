package mount

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

// Observer answers whether a URI is currently mounted and what real
// filesystem path backs it. Results are queried live on every call: external
// processes mount and unmount independently, so nothing here may be cached.
type Observer interface {
	// IsMounted reports whether the OS has an active mount enclosing the URI.
	// Fails closed: resolution errors read as "not mounted".
	IsMounted(uri string) bool

	// ResolvePath returns the real filesystem path backing the mount, or
	// false if the URI is unmounted or the path cannot be determined.
	ResolvePath(uri string) (string, bool)
}

// GvfsObserver resolves mounts through the per-user GVFS FUSE directory,
// falling back to the kernel mount table for cifs/nfs mounts done outside
// of gvfs.
type GvfsObserver struct {
	gvfsDir string
}

func NewGvfsObserver() *GvfsObserver {
	return &GvfsObserver{gvfsDir: GvfsDir()}
}

func (o *GvfsObserver) IsMounted(uri string) bool {
	_, ok := o.ResolvePath(uri)
	return ok
}

func (o *GvfsObserver) ResolvePath(uri string) (string, bool) {
	if path, ok := o.resolveGvfs(uri); ok {
		return path, true
	}
	return o.resolveKernel(uri)
}

// resolveGvfs scans the gvfs dir for an entry whose name starts with the
// derived mount name. Prefix matching tolerates the extra attributes gvfs
// appends (user=, domain=) that the URI alone cannot predict.
func (o *GvfsObserver) resolveGvfs(uri string) (string, bool) {
	want, ok := gvfsName(uri)
	if !ok {
		return "", false
	}

	entries, err := os.ReadDir(o.gvfsDir)
	if err != nil {
		return "", false
	}

	for _, e := range entries {
		name := e.Name()
		if name == want || strings.HasPrefix(name, want+",") {
			return filepath.Join(o.gvfsDir, name), true
		}
	}
	return "", false
}

// resolveKernel checks the mount table for cifs/nfs mounts of the same
// remote, e.g. //server/share mounted via mount.cifs instead of gvfs.
func (o *GvfsObserver) resolveKernel(uri string) (string, bool) {
	device, ok := kernelDevice(uri)
	if !ok {
		return "", false
	}

	parts, err := disk.Partitions(true)
	if err != nil {
		log.Debug().Err(err).Msg("cannot read mount table")
		return "", false
	}

	for _, p := range parts {
		if strings.EqualFold(p.Device, device) {
			return p.Mountpoint, true
		}
	}
	return "", false
}

// kernelDevice maps a URI to the device string the kernel mount table uses:
// //server/share for cifs, server:/export for nfs.
func kernelDevice(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "", false
	}

	switch u.Scheme {
	case "smb":
		share, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if share == "" {
			return "", false
		}
		return "//" + u.Hostname() + "/" + share, true
	case "nfs":
		if u.Path == "" || u.Path == "/" {
			return "", false
		}
		return u.Hostname() + ":" + u.Path, true
	default:
		return "", false
	}
}
