package mount

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mounter issues mount and unmount requests to the OS mount subsystem.
// Calls block until the OS call completes; callers run them on goroutines.
type Mounter interface {
	Mount(ctx context.Context, uri string) error
	Unmount(ctx context.Context, uri string) error
}

// GioMounter delegates to gio(1), which asks the running GVFS daemon to do
// the actual protocol work. Mounting is idempotent at the gio level: a
// second mount of an already-mounted URI reports "already mounted", which
// is treated as success.
type GioMounter struct{}

func NewGioMounter() *GioMounter {
	return &GioMounter{}
}

func (m *GioMounter) Mount(ctx context.Context, uri string) error {
	out, err := run(ctx, "gio", "mount", uri)
	if err != nil {
		if strings.Contains(out, "already mounted") {
			return nil
		}
		return fmt.Errorf("gio mount %s: %s", uri, firstLine(out, err))
	}
	log.Debug().Str("uri", uri).Msg("gio mount ok")
	return nil
}

func (m *GioMounter) Unmount(ctx context.Context, uri string) error {
	out, err := run(ctx, "gio", "mount", "--unmount", uri)
	if err != nil {
		if strings.Contains(out, "not mounted") {
			return nil
		}
		return fmt.Errorf("gio unmount %s: %s", uri, firstLine(out, err))
	}
	log.Debug().Str("uri", uri).Msg("gio unmount ok")
	return nil
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

func firstLine(out string, fallback error) string {
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return fallback.Error()
}
