package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Options configures the tray menu. Callbacks may be nil.
type Options struct {
	Title    string
	Hotkey   string
	OnSnip   func()
	OnCancel func()
	OnQuit   func()
}

var (
	mu      sync.Mutex
	ready   bool
	tooltip = "Screen Snip"
	about   *systray.MenuItem
	extra   string
)

// Run blocks running the system tray until Quit is chosen or Quit is called.
// It must be called from the main goroutine on platforms that require it.
func Run(opts Options) {
	systray.Run(func() { onReady(opts) }, onExit)
}

// Quit stops a running tray.
func Quit() { systray.Quit() }

func onReady(opts Options) {
	title := opts.Title
	if title == "" {
		title = "Screen Snip"
	}
	systray.SetIcon(Icon())
	systray.SetTitle(title)

	label := "Snip region"
	if opts.Hotkey != "" {
		label += " (" + opts.Hotkey + ")"
	}
	mSnip := systray.AddMenuItem(label, "Select a region of the screen")
	mCancel := systray.AddMenuItem("Cancel snip", "Close the selection overlay")
	systray.AddSeparator()
	mAbout := systray.AddMenuItem(title, "")
	mAbout.Disable()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	mu.Lock()
	ready = true
	about = mAbout
	systray.SetTooltip(tooltip)
	if extra != "" {
		mAbout.SetTitle(title + " - " + extra)
	}
	mu.Unlock()

	go func() {
		for {
			select {
			case <-mSnip.ClickedCh:
				call(opts.OnSnip)
			case <-mCancel.ClickedCh:
				call(opts.OnCancel)
			case <-mQuit.ClickedCh:
				log.Printf("tray: quit requested")
				call(opts.OnQuit)
				systray.Quit()
				return
			}
		}
	}()
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func onExit() {
	mu.Lock()
	defer mu.Unlock()
	ready = false
	about = nil
}

// UpdateTooltip sets the tray tooltip. Before the tray is running the text is
// remembered and applied on start.
func UpdateTooltip(text string) {
	mu.Lock()
	defer mu.Unlock()
	tooltip = text
	if ready {
		systray.SetTooltip(text)
	}
}

// SetAboutExtra appends informational text to the disabled about item.
func SetAboutExtra(text string) {
	mu.Lock()
	defer mu.Unlock()
	extra = text
	if ready && about != nil {
		about.SetTitle("Screen Snip - " + text)
	}
}

// Tooltip returns the current tooltip text.
func Tooltip() string {
	mu.Lock()
	defer mu.Unlock()
	return tooltip
}
