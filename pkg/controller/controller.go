package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/netmount/netmountd/pkg/bookmarks"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/notify"
	"github.com/netmount/netmountd/pkg/retry"
	"github.com/netmount/netmountd/pkg/symlink"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/rs/zerolog/log"
)

const minCheckInterval = time.Minute

// Controller reconciles the desired bookmark state against the observed OS
// mount state: it mounts enabled-but-unmounted bookmarks, maintains their
// symlinks, retries failures with bounded attempts, and emits lifecycle
// events for presenters.
//
// Mount and unmount OS calls run on goroutines; their completion handlers
// re-resolve the target bookmark by URI rather than holding a pointer, so a
// concurrent reload cannot hand them a stale object. Failure tracking is
// keyed by URI in a map that survives reloads.
type Controller struct {
	store    *bookmarks.Store
	observer mount.Observer
	mounter  mount.Mounter
	links    *symlink.Manager
	retries  *retry.Scheduler
	notifier notify.Notifier
	bus      *Bus

	mu       sync.Mutex
	cfg      types.AppConfig
	list     []*types.Bookmark
	fails    map[string]*types.FailState
	inflight map[string]struct{}
	closed   bool

	reload    chan struct{}
	interval  chan time.Duration
	quit      chan struct{}
	closeOnce sync.Once
}

func New(cfg types.AppConfig, store *bookmarks.Store, observer mount.Observer, mounter mount.Mounter,
	links *symlink.Manager, retries *retry.Scheduler, notifier notify.Notifier) *Controller {
	return &Controller{
		store:    store,
		observer: observer,
		mounter:  mounter,
		links:    links,
		retries:  retries,
		notifier: notifier,
		bus:      NewBus(),
		cfg:      cfg,
		fails:    make(map[string]*types.FailState),
		inflight: make(map[string]struct{}),
		reload:   make(chan struct{}, 1),
		interval: make(chan time.Duration, 1),
		quit:     make(chan struct{}),
	}
}

// Bus returns the event bus presenters subscribe to.
func (c *Controller) Bus() *Bus { return c.bus }

// Run drives periodic reconciliation until ctx is cancelled or Close is
// called. The first pass waits out the startup grace delay so the network
// and the GVFS daemon have a chance to come up after login.
func (c *Controller) Run(ctx context.Context) error {
	if delay := c.mountCfg().StartupDelayDuration(); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-time.After(delay):
		}
	}

	c.Reconcile(false, true)

	ticker := time.NewTicker(c.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-ticker.C:
			c.Reconcile(false, false)
		case <-c.reload:
			c.Reconcile(false, false)
		case iv := <-c.interval:
			log.Info().Dur("interval", iv).Msg("check interval changed")
			ticker.Reset(iv)
		}
	}
}

// TriggerReconcile requests an extra reconcile pass on the run loop. Used by
// the file watcher when bookmarks or settings change externally.
func (c *Controller) TriggerReconcile() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// ApplyConfig swaps the runtime configuration. A changed check interval
// re-arms the periodic timer, replacing the existing one.
func (c *Controller) ApplyConfig(cfg types.AppConfig) {
	c.mu.Lock()
	changed := cfg.Mount.CheckInterval != c.cfg.Mount.CheckInterval
	c.cfg = cfg
	c.mu.Unlock()

	if changed {
		iv := cfg.Mount.CheckIntervalDuration()
		if iv < minCheckInterval {
			iv = minCheckInterval
		}
		select {
		case c.interval <- iv:
		default:
		}
	}
}

// Reconcile reloads the bookmark list and corrects every mismatch between
// desired and observed state. Bookmarks are processed in stable list order.
// Symlink maintenance is independent of the auto-mount toggle: a disabled
// bookmark that happens to be mounted still gets its symlink repaired.
func (c *Controller) Reconcile(manual, startup bool) {
	list := c.reloadBookmarks()

	attempted := 0
	for _, b := range list {
		if !b.Enabled {
			c.retries.Cancel(b.URI)
			if b.CreateSymlink && c.observer.IsMounted(b.URI) {
				c.ensureLink(b)
			}
			continue
		}

		if c.observer.IsMounted(b.URI) {
			c.clearFail(b.URI)
			c.retries.Cancel(b.URI)
			c.ensureLink(b)
			continue
		}

		if manual {
			// Manual checks reset failure tracking so exhausted bookmarks
			// get a fresh set of attempts.
			c.clearFail(b.URI)
		} else if c.exhausted(b.URI) {
			continue
		}

		if c.MountOne(b.URI, false, startup) {
			attempted++
		}
	}

	log.Debug().Int("bookmarks", len(list)).Int("attempted", attempted).
		Bool("manual", manual).Bool("startup", startup).Msg("reconcile pass complete")

	if manual {
		c.notifier.Notify("Network mounts",
			fmt.Sprintf("Checked %d bookmarks, started %d mounts", len(list), attempted),
			notify.SeverityStatus)
	}
}

// MountOne attempts to mount a single bookmark. An already-mounted bookmark
// is treated as success: its symlink is ensured and no mount is issued.
// Returns whether a mount request was actually started.
func (c *Controller) MountOne(uri string, isRetry, isStartup bool) bool {
	b := c.lookup(uri)
	if b == nil || c.isClosed() {
		return false
	}

	if c.observer.IsMounted(uri) {
		c.clearFail(uri)
		c.ensureLink(b)
		c.emit(uri, mount.Mounted, nil)
		return false
	}

	if !c.markInflight(uri) {
		log.Debug().Str("uri", uri).Msg("mount already in flight")
		return false
	}

	log.Info().Str("uri", uri).Bool("retry", isRetry).Msg("mounting")
	c.emit(uri, mount.Mounting, nil)

	go func() {
		ctx, cancel := c.opContext()
		defer cancel()
		err := c.mounter.Mount(ctx, uri)
		c.onMountDone(uri, err, isStartup)
	}()
	return true
}

// MountNow handles an explicit user request: failure tracking is reset so a
// previously exhausted bookmark is attempted again.
func (c *Controller) MountNow(uri string) {
	c.clearFail(uri)
	c.retries.Cancel(uri)
	c.MountOne(uri, false, false)
}

func (c *Controller) onMountDone(uri string, err error, isStartup bool) {
	c.clearInflight(uri)
	if c.isClosed() {
		return
	}

	b := c.lookup(uri)
	if b == nil {
		// Bookmark vanished in a reload while the mount was in flight.
		c.clearFail(uri)
		return
	}

	if err != nil {
		c.handleMountFailure(b, err)
		return
	}

	c.clearFail(uri)
	c.retries.Cancel(uri)
	log.Info().Str("uri", uri).Msg("mounted")

	// Let the mount settle before resolving its real path for the symlink.
	if delay := c.mountCfg().GraceDelayDuration(); delay > 0 {
		time.Sleep(delay)
	}
	c.ensureLink(b)

	if !isStartup {
		c.notifier.Notify("Mounted", b.DisplayName(), notify.SeverityInfo)
	}
	c.emit(uri, mount.Mounted, nil)
}

func (c *Controller) handleMountFailure(b *types.Bookmark, cause error) {
	uri := b.URI
	cfg := c.mountCfg()
	count := c.recordFailure(uri)

	if count <= cfg.RetryAttempts {
		delay := cfg.RetryDelayDuration()
		c.retries.Schedule(uri, delay, func() { c.retryFire(uri) })
		log.Warn().Err(cause).Str("uri", uri).Int("attempt", count).
			Int("max", cfg.RetryAttempts).Msg("mount failed, retry scheduled")
		c.notifier.Notify("Mount failed",
			fmt.Sprintf("%s: retrying in %ds (attempt %d of %d)",
				b.DisplayName(), cfg.RetryDelay, count, cfg.RetryAttempts),
			notify.SeverityWarning)
		c.emit(uri, mount.Failed, &types.ErrMountFailed{URI: uri, Cause: cause})
		return
	}

	log.Error().Err(cause).Str("uri", uri).Int("attempts", count).Msg("mount failed, giving up")
	c.notifier.Notify("Mount failed",
		fmt.Sprintf("%s: giving up after %d attempts", b.DisplayName(), count),
		notify.SeverityError)
	c.emit(uri, mount.Failed, &types.ErrRetriesExhausted{URI: uri, Attempts: count})
}

// retryFire runs when a retry timer elapses. The bookmark is re-resolved
// and re-checked: a retry for a meanwhile-disabled or meanwhile-mounted
// bookmark is a no-op.
func (c *Controller) retryFire(uri string) {
	if c.isClosed() {
		return
	}
	b := c.lookup(uri)
	if b == nil || !b.Enabled {
		return
	}
	if c.observer.IsMounted(uri) {
		c.clearFail(uri)
		return
	}
	c.MountOne(uri, true, false)
}

// UnmountOne unmounts a single bookmark. The symlink is removed before the
// unmount is issued; if the unmount then fails the link is already gone,
// trading a missing symlink for a clean unmount path. A not-mounted
// bookmark still gets stale-symlink cleanup when symlinks are enabled.
// Bookmarks without symlink maintenance never touch the desired path: a
// link someone else placed there is not ours to delete.
func (c *Controller) UnmountOne(uri string) bool {
	b := c.lookup(uri)
	if b == nil || c.isClosed() {
		return false
	}

	if !c.observer.IsMounted(uri) {
		if b.CreateSymlink {
			if err := c.links.Remove(b); err != nil {
				log.Warn().Err(err).Str("uri", uri).Msg("stale symlink cleanup failed")
			}
		}
		c.notifier.Notify("Not mounted", b.DisplayName(), notify.SeverityInfo)
		c.emit(uri, mount.Unmounted, nil)
		return false
	}

	if b.CreateSymlink {
		if err := c.links.Remove(b); err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("symlink removal failed")
		}
	}

	log.Info().Str("uri", uri).Msg("unmounting")
	c.emit(uri, mount.Unmounting, nil)

	go func() {
		ctx, cancel := c.opContext()
		defer cancel()
		err := c.mounter.Unmount(ctx, uri)
		c.onUnmountDone(uri, err)
	}()
	return true
}

func (c *Controller) onUnmountDone(uri string, err error) {
	if c.isClosed() {
		return
	}
	b := c.lookup(uri)
	if b == nil {
		return
	}

	if err != nil {
		log.Error().Err(err).Str("uri", uri).Msg("unmount failed")
		c.notifier.Notify("Unmount failed", b.DisplayName(), notify.SeverityError)
		c.emit(uri, mount.Mounted, err)
		return
	}

	c.retries.Cancel(uri)
	log.Info().Str("uri", uri).Msg("unmounted")
	c.notifier.Notify("Unmounted", b.DisplayName(), notify.SeverityInfo)
	c.emit(uri, mount.Unmounted, nil)
}

// MountAllEnabled starts a mount for every enabled, unmounted bookmark and
// returns how many requests were issued. Outcomes arrive asynchronously and
// are reported per bookmark.
func (c *Controller) MountAllEnabled() int {
	attempted := 0
	for _, b := range c.snapshot() {
		if !b.Enabled {
			continue
		}
		c.clearFail(b.URI)
		if c.MountOne(b.URI, false, false) {
			attempted++
		}
	}
	return attempted
}

// UnmountAll starts an unmount for every mounted bookmark and returns how
// many requests were issued.
func (c *Controller) UnmountAll() int {
	attempted := 0
	for _, b := range c.snapshot() {
		if c.UnmountOne(b.URI) {
			attempted++
		}
	}
	return attempted
}

// SetEnabled toggles auto-mount for a bookmark and persists the change.
// Disabling cancels any pending retry; symlink maintenance for an
// already-mounted bookmark continues either way.
func (c *Controller) SetEnabled(uri string, enabled bool) error {
	err := c.updateBookmark(uri, func(b *types.Bookmark) {
		b.Enabled = enabled
	})
	if err != nil {
		return err
	}
	if !enabled {
		c.retries.Cancel(uri)
		c.clearFail(uri)
	}
	return nil
}

// SetCreateSymlink toggles symlink maintenance and persists the change. The
// symlink itself is created or removed on the spot when possible.
func (c *Controller) SetCreateSymlink(uri string, on bool) error {
	err := c.updateBookmark(uri, func(b *types.Bookmark) {
		b.CreateSymlink = on
	})
	if err != nil {
		return err
	}

	b := c.lookup(uri)
	if b == nil {
		return nil
	}
	if on {
		if c.observer.IsMounted(uri) {
			c.ensureLink(b)
		}
	} else {
		if err := c.links.Remove(b); err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("symlink removal failed")
		}
	}
	return nil
}

// SetSymlinkPath overrides the symlink leaf name and persists the change.
func (c *Controller) SetSymlinkPath(uri, leaf string) error {
	old := c.lookup(uri)
	if old != nil && old.CreateSymlink {
		// The desired path is about to change; drop the link at the old one.
		if err := c.links.Remove(old); err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("symlink removal failed")
		}
	}

	err := c.updateBookmark(uri, func(b *types.Bookmark) {
		b.SymlinkPath = leaf
	})
	if err != nil {
		return err
	}

	if b := c.lookup(uri); b != nil && b.CreateSymlink && c.observer.IsMounted(uri) {
		c.ensureLink(b)
	}
	return nil
}

// Bookmarks returns a snapshot copy of the current list for presentation.
func (c *Controller) Bookmarks() []*types.Bookmark {
	list := c.snapshot()
	out := make([]*types.Bookmark, len(list))
	for i, b := range list {
		cp := *b
		out[i] = &cp
	}
	return out
}

// FailCount returns the consecutive failure count for a URI.
func (c *Controller) FailCount(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fs, ok := c.fails[uri]; ok {
		return fs.Count
	}
	return 0
}

// Close shuts the controller down: the run loop stops, pending retries are
// cancelled, and every managed symlink is removed regardless of mount state.
// All three steps always execute; errors are logged and collected.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)

		c.retries.CancelAll()

		if rmErr := c.links.RemoveAll(); rmErr != nil {
			log.Error().Err(rmErr).Msg("symlink cleanup failed")
			err = errors.Join(err, rmErr)
		}
		log.Info().Msg("controller closed")
	})
	return err
}

// --- internals ---

// reloadBookmarks reads the bookmark list and overlays persisted settings.
// Malformed settings are non-fatal: defaults apply and the parse error is
// logged once per pass.
func (c *Controller) reloadBookmarks() []*types.Bookmark {
	list, err := c.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("bookmark load failed, keeping previous list")
		return c.snapshot()
	}

	settings, err := c.store.LoadSettings()
	if err != nil {
		log.Warn().Err(err).Msg("settings unreadable, using defaults")
	}
	c.store.ApplySettings(list, settings)

	c.mu.Lock()
	c.list = list
	c.mu.Unlock()

	c.bus.Emit(Event{Type: EventListReloaded})
	return list
}

func (c *Controller) ensureLink(b *types.Bookmark) {
	if !b.CreateSymlink {
		return
	}
	realPath, ok := c.observer.ResolvePath(b.URI)
	if !ok {
		log.Debug().Str("uri", b.URI).Msg("mount path not resolvable, skipping symlink")
		return
	}
	if err := c.links.Ensure(b, realPath); err != nil {
		var conflict *types.ErrSymlinkConflict
		if errors.As(err, &conflict) {
			// The mount itself is fine; only the link could not be placed.
			c.notifier.Notify("Symlink conflict",
				fmt.Sprintf("%s is occupied by an existing file", conflict.Path),
				notify.SeverityError)
		} else {
			log.Warn().Err(err).Str("uri", b.URI).Msg("symlink ensure failed")
		}
	}
}

func (c *Controller) lookup(uri string) *types.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.list {
		if b.URI == uri {
			return b
		}
	}
	return nil
}

func (c *Controller) snapshot() []*types.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Bookmark, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Controller) updateBookmark(uri string, mutate func(*types.Bookmark)) error {
	c.mu.Lock()
	var target *types.Bookmark
	for _, b := range c.list {
		if b.URI == uri {
			target = b
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return &types.ErrBookmarkNotFound{URI: uri}
	}
	mutate(target)
	settings := c.store.ProjectSettings(c.list)
	c.mu.Unlock()

	if err := c.store.SaveSettings(settings); err != nil {
		return err
	}

	st := mount.Unmounted
	if c.observer.IsMounted(uri) {
		st = mount.Mounted
	}
	c.emit(uri, st, nil)
	return nil
}

func (c *Controller) recordFailure(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.fails[uri]
	if !ok {
		fs = &types.FailState{}
		c.fails[uri] = fs
	}
	fs.Count++
	fs.LastAttempt = time.Now()
	return fs.Count
}

func (c *Controller) clearFail(uri string) {
	c.mu.Lock()
	delete(c.fails, uri)
	c.mu.Unlock()
}

func (c *Controller) exhausted(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.fails[uri]
	return ok && fs.Count > c.cfg.Mount.RetryAttempts
}

// InFlight reports how many mount/unmount operations are still running.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

func (c *Controller) markInflight(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[uri]; busy {
		return false
	}
	c.inflight[uri] = struct{}{}
	return true
}

func (c *Controller) clearInflight(uri string) {
	c.mu.Lock()
	delete(c.inflight, uri)
	c.mu.Unlock()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) mountCfg() types.MountConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Mount
}

func (c *Controller) tickInterval() time.Duration {
	iv := c.mountCfg().CheckIntervalDuration()
	if iv < minCheckInterval {
		iv = minCheckInterval
	}
	return iv
}

func (c *Controller) opContext() (context.Context, context.CancelFunc) {
	if timeout := c.mountCfg().MountTimeoutDuration(); timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func (c *Controller) emit(uri string, state mount.State, err error) {
	c.bus.Emit(Event{Type: EventStateChanged, URI: uri, State: state, Err: err})
}
