package tray

import (
	"fmt"
	"sync"

	"fyne.io/systray"
	"github.com/netmount/netmountd/pkg/controller"
	"github.com/netmount/netmountd/pkg/mount"
	"github.com/netmount/netmountd/pkg/types"
)

type bookmarkItem struct {
	uri     string
	root    *systray.MenuItem
	mToggle *systray.MenuItem
	mAuto   *systray.MenuItem
	mounted bool
	hidden  bool
}

type ui struct {
	app *App

	mStatus    *systray.MenuItem
	mCheck     *systray.MenuItem
	mMountAll  *systray.MenuItem
	mUnmount   *systray.MenuItem
	mNotify    *systray.MenuItem
	mAutostart *systray.MenuItem
	mQuit      *systray.MenuItem

	mu    sync.Mutex
	items map[string]*bookmarkItem
}

func newUI(app *App) *ui {
	u := &ui{app: app, items: make(map[string]*bookmarkItem)}

	systray.SetIcon(iconDisconnected)
	systray.SetTooltip("Network Mounts")

	title := systray.AddMenuItem("Network Mounts", "")
	title.Disable()
	systray.AddSeparator()

	u.mStatus = systray.AddMenuItem("0 of 0 mounted", "")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mCheck = systray.AddMenuItem("Check Now", "")
	u.mMountAll = systray.AddMenuItem("Mount All", "")
	u.mUnmount = systray.AddMenuItem("Unmount All", "")
	systray.AddSeparator()

	u.mNotify = systray.AddMenuItemCheckbox("Notifications", "", app.trayCfg.ShowNotifications)
	u.mAutostart = systray.AddMenuItemCheckbox("Start at Login", "", IsAutostartEnabled())
	u.mQuit = systray.AddMenuItem("Quit", "")

	go u.run()
	return u
}

func (u *ui) run() {
	for {
		select {
		case <-u.mCheck.ClickedCh:
			u.app.checkNow()
		case <-u.mMountAll.ClickedCh:
			u.app.mountAll()
		case <-u.mUnmount.ClickedCh:
			u.app.unmountAll()
		case <-u.mNotify.ClickedCh:
			u.app.toggleNotifications()
		case <-u.mAutostart.ClickedCh:
			u.app.toggleAutostart()
		case <-u.mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// syncBookmarks appends items for bookmarks that appeared and hides items
// whose bookmark is gone. The systray API cannot remove items, so absent
// entries are hidden rather than deleted.
func (u *ui) syncBookmarks(list []*types.Bookmark) {
	u.mu.Lock()
	defer u.mu.Unlock()

	present := make(map[string]bool, len(list))
	for _, b := range list {
		present[b.URI] = true
		if item, ok := u.items[b.URI]; ok {
			item.root.SetTitle(b.DisplayName())
			item.root.Show()
			item.hidden = false
			setChecked(item.mAuto, b.Enabled)
			continue
		}
		u.items[b.URI] = u.addItem(b)
	}

	for uri, item := range u.items {
		if !present[uri] {
			item.root.Hide()
			item.hidden = true
		}
	}

	u.refreshStatusLocked()
}

func (u *ui) addItem(b *types.Bookmark) *bookmarkItem {
	item := &bookmarkItem{uri: b.URI}
	item.root = systray.AddMenuItem(b.DisplayName(), b.URI)
	item.mToggle = item.root.AddSubMenuItem("Mount", "")
	item.mAuto = item.root.AddSubMenuItemCheckbox("Auto-mount", "", b.Enabled)

	go func() {
		for {
			select {
			case <-item.mToggle.ClickedCh:
				u.toggleMount(item)
			case <-item.mAuto.ClickedCh:
				u.toggleAuto(item)
			}
		}
	}()
	return item
}

func (u *ui) toggleMount(item *bookmarkItem) {
	u.mu.Lock()
	mounted := item.mounted
	u.mu.Unlock()

	if mounted {
		go u.app.ctrl.UnmountOne(item.uri)
	} else {
		go u.app.ctrl.MountNow(item.uri)
	}
}

func (u *ui) toggleAuto(item *bookmarkItem) {
	enabled := false
	for _, b := range u.app.ctrl.Bookmarks() {
		if b.URI == item.uri {
			enabled = b.Enabled
			break
		}
	}
	go u.app.ctrl.SetEnabled(item.uri, !enabled)
}

// updateBookmark reflects a single lifecycle event in the menu.
func (u *ui) updateBookmark(e controller.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()

	item, ok := u.items[e.URI]
	if !ok {
		return
	}

	switch e.State {
	case mount.Mounted:
		item.mounted = true
		item.mToggle.SetTitle("Unmount")
		item.mToggle.Enable()
	case mount.Unmounted, mount.Failed:
		item.mounted = false
		item.mToggle.SetTitle("Mount")
		item.mToggle.Enable()
	case mount.Mounting, mount.Unmounting:
		item.mToggle.SetTitle(e.State.String() + "...")
		item.mToggle.Disable()
	}

	u.refreshStatusLocked()
}

func (u *ui) refreshStatusLocked() {
	total, mounted := 0, 0
	for _, item := range u.items {
		if item.hidden {
			continue
		}
		total++
		if item.mounted {
			mounted++
		}
	}
	u.mStatus.SetTitle(fmt.Sprintf("%d of %d mounted", mounted, total))

	if mounted > 0 {
		systray.SetIcon(iconConnected)
	} else {
		systray.SetIcon(iconDisconnected)
	}
}

func (u *ui) updateAutostartItem() {
	setChecked(u.mAutostart, IsAutostartEnabled())
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}
