package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/netmount/netmountd/pkg/bookmarks"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/notify"
	"github.com/netmount/netmountd/pkg/retry"
	"github.com/netmount/netmountd/pkg/symlink"
	"github.com/netmount/netmountd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeObserver struct {
	mu      sync.Mutex
	mounted map[string]string // URI -> resolved path
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{mounted: make(map[string]string)}
}

func (o *fakeObserver) IsMounted(uri string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.mounted[uri]
	return ok
}

func (o *fakeObserver) ResolvePath(uri string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.mounted[uri]
	return p, ok
}

func (o *fakeObserver) set(uri, path string) {
	o.mu.Lock()
	o.mounted[uri] = path
	o.mu.Unlock()
}

func (o *fakeObserver) unset(uri string) {
	o.mu.Lock()
	delete(o.mounted, uri)
	o.mu.Unlock()
}

// fakeMounter fails the first failTimes calls per URI, then succeeds and
// marks the URI as mounted in the linked observer.
type fakeMounter struct {
	mu         sync.Mutex
	observer   *fakeObserver
	failTimes  map[string]int
	calls      map[string]int
	unmounts   map[string]int
	unmountErr error
}

func newFakeMounter(o *fakeObserver) *fakeMounter {
	return &fakeMounter{
		observer:  o,
		failTimes: make(map[string]int),
		calls:     make(map[string]int),
		unmounts:  make(map[string]int),
	}
}

func (m *fakeMounter) Mount(_ context.Context, uri string) error {
	m.mu.Lock()
	m.calls[uri]++
	n := m.calls[uri]
	fail := n <= m.failTimes[uri]
	m.mu.Unlock()

	if fail {
		return errors.New("mount refused")
	}
	m.observer.set(uri, "/run/user/1000/gvfs/fake:"+uri)
	return nil
}

func (m *fakeMounter) Unmount(_ context.Context, uri string) error {
	m.mu.Lock()
	m.unmounts[uri]++
	err := m.unmountErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.observer.unset(uri)
	return nil
}

func (m *fakeMounter) mountCalls(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[uri]
}

func (m *fakeMounter) unmountCalls(uri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmounts[uri]
}

type notification struct {
	title string
	msg   string
	sev   notify.Severity
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(title, msg string, sev notify.Severity) {
	n.mu.Lock()
	n.sent = append(n.sent, notification{title, msg, sev})
	n.mu.Unlock()
}

func (n *fakeNotifier) bySeverity(sev notify.Severity) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if s.sev == sev {
			count++
		}
	}
	return count
}

// --- Harness ---

type harness struct {
	ctrl     *Controller
	observer *fakeObserver
	mounter  *fakeMounter
	notifier *fakeNotifier
	retries  *retry.Scheduler
	links    *symlink.Manager
	store    *bookmarks.Store
	baseDir  string
}

func newHarness(t *testing.T, bookmarkLines string, cfg types.AppConfig) *harness {
	t.Helper()
	dir := t.TempDir()

	bmPath := filepath.Join(dir, "bookmarks")
	require.NoError(t, os.WriteFile(bmPath, []byte(bookmarkLines), 0644))

	baseDir := filepath.Join(dir, "NetworkMounts")
	cfg.Mount.BaseDir = baseDir

	store := bookmarks.NewStore(bmPath, filepath.Join(dir, "settings.json"))
	observer := newFakeObserver()
	mounter := newFakeMounter(observer)
	notifier := &fakeNotifier{}
	retries := retry.NewScheduler()
	links := symlink.NewManager(baseDir)

	ctrl := New(cfg, store, observer, mounter, links, retries, notifier)
	t.Cleanup(func() { ctrl.Close() })

	return &harness{
		ctrl: ctrl, observer: observer, mounter: mounter, notifier: notifier,
		retries: retries, links: links, store: store, baseDir: baseDir,
	}
}

func testConfig() types.AppConfig {
	return types.AppConfig{
		Mount: types.MountConfig{
			CheckInterval: 5,
			RetryAttempts: 3,
			RetryDelay:    0, // retries fire immediately in tests
			MountTimeout:  5,
		},
		Notifications: types.NotificationConfig{Enabled: true, ShowSuccess: true, ShowErrors: true},
	}
}

// --- Tests ---

func TestReconcileMountsEnabledBookmarks(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\nsmb://server/other Other\n", testConfig())

	h.ctrl.Reconcile(false, false)

	require.Eventually(t, func() bool {
		return h.observer.IsMounted("smb://server/share") && h.observer.IsMounted("smb://server/other")
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1, h.mounter.mountCalls("smb://server/share"))
	assert.Equal(t, 1, h.mounter.mountCalls("smb://server/other"))
	assert.Equal(t, 0, h.ctrl.FailCount("smb://server/share"))
}

func TestReconcileSkipsMountedBookmarks(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.observer.set("smb://server/share", "/run/user/1000/gvfs/fake")

	h.ctrl.Reconcile(false, false)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, h.mounter.mountCalls("smb://server/share"))
}

func TestMountSuccessCreatesSymlink(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	require.NoError(t, os.WriteFile(h.store.SettingsPath(), []byte(
		`{"smb://server/share": {"enabled": true, "createSymlink": true, "symlinkPath": ""}}`), 0644))

	h.ctrl.Reconcile(false, false)

	link := filepath.Join(h.baseDir, "Share")
	require.Eventually(t, func() bool {
		target, err := os.Readlink(link)
		return err == nil && target == "/run/user/1000/gvfs/fake:smb://server/share"
	}, time.Second, time.Millisecond)

	assert.Equal(t, 0, h.ctrl.FailCount("smb://server/share"))
}

func TestFailureProgressionAndTerminalFailure(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 100 // never succeeds
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)

	// Initial attempt plus one retry per allowed failure, then terminal:
	// with retryAttempts=3 exactly 3 retries fire, the fourth failure is
	// terminal and no further task is scheduled.
	require.Eventually(t, func() bool {
		return h.ctrl.FailCount("smb://server/share") == 4 && h.retries.Pending() == 0
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, 4, h.mounter.mountCalls("smb://server/share"))
	assert.Equal(t, 3, h.notifier.bySeverity(notify.SeverityWarning), "one retrying notice per scheduled retry")
	assert.Equal(t, 1, h.notifier.bySeverity(notify.SeverityError), "one terminal notice")

	// Exhausted bookmarks are excluded from automatic passes.
	h.ctrl.Reconcile(false, false)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, h.mounter.mountCalls("smb://server/share"))
}

func TestManualReconcileResetsExhausted(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 100
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.ctrl.FailCount("smb://server/share") == 4
	}, 2*time.Second, time.Millisecond)

	// Manual check starts over.
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 0
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(true, false)
	require.Eventually(t, func() bool {
		return h.observer.IsMounted("smb://server/share")
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.ctrl.FailCount("smb://server/share"))
}

func TestSuccessResetsFailCount(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 2 // fails twice, then succeeds
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)

	require.Eventually(t, func() bool {
		return h.observer.IsMounted("smb://server/share")
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, 3, h.mounter.mountCalls("smb://server/share"))
	assert.Equal(t, 0, h.ctrl.FailCount("smb://server/share"))
	assert.Equal(t, 0, h.retries.Pending())
}

func TestDisableCancelsRetryButKeepsSymlinkMaintenance(t *testing.T) {
	cfg := testConfig()
	cfg.Mount.RetryDelay = 60 // keep the retry pending
	h := newHarness(t, "smb://server/share Share\n", cfg)
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 100
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.retries.Has("smb://server/share")
	}, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.SetEnabled("smb://server/share", false))
	assert.False(t, h.retries.Has("smb://server/share"))

	// Externally mounted while disabled: symlink maintenance continues.
	require.NoError(t, h.ctrl.SetCreateSymlink("smb://server/share", true))
	h.observer.set("smb://server/share", "/run/user/1000/gvfs/external")

	before := h.mounter.mountCalls("smb://server/share")
	h.ctrl.Reconcile(false, false)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, before, h.mounter.mountCalls("smb://server/share"), "disabled bookmark must not be mounted")
	target, err := os.Readlink(filepath.Join(h.baseDir, "Share"))
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/gvfs/external", target)
}

func TestUnmountRemovesSymlinkFirst(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	require.NoError(t, os.WriteFile(h.store.SettingsPath(), []byte(
		`{"smb://server/share": {"enabled": true, "createSymlink": true, "symlinkPath": ""}}`), 0644))

	h.ctrl.Reconcile(false, false)
	link := filepath.Join(h.baseDir, "Share")
	require.Eventually(t, func() bool {
		_, err := os.Lstat(link)
		return err == nil
	}, time.Second, time.Millisecond)

	h.ctrl.UnmountOne("smb://server/share")

	require.Eventually(t, func() bool {
		return !h.observer.IsMounted("smb://server/share")
	}, time.Second, time.Millisecond)
	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, h.mounter.unmountCalls("smb://server/share"))
}

func TestUnmountOfUnmountedCleansStaleLink(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	require.NoError(t, os.WriteFile(h.store.SettingsPath(), []byte(
		`{"smb://server/share": {"enabled": true, "createSymlink": true, "symlinkPath": ""}}`), 0644))

	h.ctrl.Reconcile(false, false)
	link := filepath.Join(h.baseDir, "Share")
	require.Eventually(t, func() bool {
		_, err := os.Lstat(link)
		return err == nil
	}, time.Second, time.Millisecond)

	// Mount gone externally, link left dangling.
	h.observer.unset("smb://server/share")

	started := h.ctrl.UnmountOne("smb://server/share")
	assert.False(t, started)
	assert.Equal(t, 0, h.mounter.unmountCalls("smb://server/share"))

	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}

func TestUnmountLeavesForeignSymlinkAlone(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())

	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.observer.IsMounted("smb://server/share")
	}, time.Second, time.Millisecond)

	// With createSymlink off, a link someone else placed at the desired
	// path is not ours to delete.
	require.NoError(t, os.MkdirAll(h.baseDir, 0755))
	link := filepath.Join(h.baseDir, "Share")
	require.NoError(t, os.Symlink("/somewhere/else", link))

	h.ctrl.UnmountOne("smb://server/share")
	require.Eventually(t, func() bool {
		return !h.observer.IsMounted("smb://server/share")
	}, time.Second, time.Millisecond)

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "/somewhere/else", target)

	// Same for the not-mounted cleanup path.
	h.ctrl.UnmountOne("smb://server/share")
	_, err = os.Lstat(link)
	assert.NoError(t, err)
}

func TestMountAllAndUnmountAllCountAttempts(t *testing.T) {
	h := newHarness(t, "smb://a/x X\nsmb://b/y Y\nsmb://c/z Z\n", testConfig())
	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.observer.IsMounted("smb://a/x") && h.observer.IsMounted("smb://b/y") && h.observer.IsMounted("smb://c/z")
	}, time.Second, time.Millisecond)

	// Everything already mounted: nothing to attempt.
	assert.Equal(t, 0, h.ctrl.MountAllEnabled())

	attempted := h.ctrl.UnmountAll()
	assert.Equal(t, 3, attempted)
	require.Eventually(t, func() bool {
		return !h.observer.IsMounted("smb://a/x") && !h.observer.IsMounted("smb://b/y") && !h.observer.IsMounted("smb://c/z")
	}, time.Second, time.Millisecond)

	assert.Equal(t, 3, h.ctrl.MountAllEnabled())
}

func TestCloseCleansEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Mount.RetryDelay = 60
	h := newHarness(t, "smb://a/x X\nsmb://b/y Y\nsmb://c/z Z\n", cfg)
	require.NoError(t, os.WriteFile(h.store.SettingsPath(), []byte(`{
		"smb://a/x": {"enabled": true, "createSymlink": true},
		"smb://b/y": {"enabled": true, "createSymlink": true},
		"smb://c/z": {"enabled": true, "createSymlink": false}
	}`), 0644))
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://c/z"] = 100 // leaves a pending retry
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.links.Tracked() == 2 && h.retries.Has("smb://c/z")
	}, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.Close())

	assert.Equal(t, 0, h.links.Tracked())
	assert.Equal(t, 0, h.retries.Pending())

	entries, err := os.ReadDir(h.baseDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no symlinks left behind")
}

func TestInFlightGuardPreventsDuplicateMount(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.ctrl.reloadBookmarks()

	require.True(t, h.ctrl.markInflight("smb://server/share"))
	started := h.ctrl.MountOne("smb://server/share", false, false)
	assert.False(t, started)
	h.ctrl.clearInflight("smb://server/share")
}

func TestSettingsPersistAcrossReload(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	h.ctrl.reloadBookmarks()

	require.NoError(t, h.ctrl.SetEnabled("smb://server/share", false))

	// Fresh pass reloads from disk; the toggle must survive.
	h.ctrl.Reconcile(false, false)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, h.mounter.mountCalls("smb://server/share"))

	list := h.ctrl.Bookmarks()
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)
}

func TestEventsEmittedOnStateChanges(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())

	var mu sync.Mutex
	var states []mount.State
	h.ctrl.Bus().On(EventStateChanged, func(e Event) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})

	h.ctrl.Reconcile(false, false)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, mount.Mounting, states[0])
	assert.Equal(t, mount.Mounted, states[len(states)-1])
}

func TestUnmountFailureLeavesMountWithoutSymlink(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())
	require.NoError(t, os.WriteFile(h.store.SettingsPath(), []byte(
		`{"smb://server/share": {"enabled": true, "createSymlink": true, "symlinkPath": ""}}`), 0644))

	h.ctrl.Reconcile(false, false)
	link := filepath.Join(h.baseDir, "Share")
	require.Eventually(t, func() bool {
		_, err := os.Lstat(link)
		return err == nil
	}, time.Second, time.Millisecond)

	h.mounter.mu.Lock()
	h.mounter.unmountErr = errors.New("target busy")
	h.mounter.mu.Unlock()

	h.ctrl.UnmountOne("smb://server/share")

	// The link is removed before the unmount is issued; a failed unmount
	// leaves the mount in place without its symlink.
	require.Eventually(t, func() bool {
		return h.notifier.bySeverity(notify.SeverityError) == 1
	}, time.Second, time.Millisecond)

	assert.True(t, h.observer.IsMounted("smb://server/share"))
	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}

func TestApplyConfigReArmsTickerOnIntervalChange(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, "smb://server/share Share\n", cfg)

	cfg.Mount.CheckInterval = 15
	h.ctrl.ApplyConfig(cfg)

	select {
	case iv := <-h.ctrl.interval:
		assert.Equal(t, 15*time.Minute, iv, "run loop must receive the new cadence")
	default:
		t.Fatal("interval change not propagated to the run loop")
	}

	// Same interval again: no re-arm.
	h.ctrl.ApplyConfig(cfg)
	select {
	case <-h.ctrl.interval:
		t.Fatal("unchanged interval must not re-arm the ticker")
	default:
	}

	// A zero interval is floored rather than spinning the ticker.
	cfg.Mount.CheckInterval = 0
	h.ctrl.ApplyConfig(cfg)
	select {
	case iv := <-h.ctrl.interval:
		assert.Equal(t, minCheckInterval, iv)
	default:
		t.Fatal("interval change not propagated to the run loop")
	}
}

func TestManualReconcileEmitsStatusSummary(t *testing.T) {
	h := newHarness(t, "smb://server/share Share\n", testConfig())

	h.ctrl.Reconcile(true, false)

	assert.Equal(t, 1, h.notifier.bySeverity(notify.SeverityStatus), "manual check reports a summary")

	h.ctrl.Reconcile(false, false)
	assert.Equal(t, 1, h.notifier.bySeverity(notify.SeverityStatus), "automatic passes stay silent")
}

func TestRetryFireSkipsMeanwhileMounted(t *testing.T) {
	cfg := testConfig()
	cfg.Mount.RetryDelay = 60
	h := newHarness(t, "smb://server/share Share\n", cfg)
	h.mounter.mu.Lock()
	h.mounter.failTimes["smb://server/share"] = 100
	h.mounter.mu.Unlock()

	h.ctrl.Reconcile(false, false)
	require.Eventually(t, func() bool {
		return h.retries.Has("smb://server/share")
	}, time.Second, time.Millisecond)

	// Mounted externally before the retry fires.
	h.observer.set("smb://server/share", "/run/user/1000/gvfs/external")
	before := h.mounter.mountCalls("smb://server/share")

	h.ctrl.retryFire("smb://server/share")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, before, h.mounter.mountCalls("smb://server/share"))
	assert.Equal(t, 0, h.ctrl.FailCount("smb://server/share"))
}
