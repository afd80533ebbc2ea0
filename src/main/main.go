package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"screen-snip/src/chrome"
	"screen-snip/src/clipboard"
	"screen-snip/src/config"
	"screen-snip/src/encoder"
	"screen-snip/src/eventloop"
	"screen-snip/src/events"
	"screen-snip/src/httpapi"
	"screen-snip/src/logutil"
	"screen-snip/src/notification"
	"screen-snip/src/runtimeinit"
	"screen-snip/src/screenshot"
	"screen-snip/src/session"
	"screen-snip/src/singleinstance"
	"screen-snip/src/snip"
	"screen-snip/src/tray"
	"screen-snip/src/window"
)

type mainOptions struct {
	envPath    string
	mode       string
	httpAddr   string
	noTray     bool
	noHTTP     bool
	hostHandle uint64
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// Windowed builds have no console; surface the failure as a dialog.
		notification.ShowBlockingError("Screen Snip", err.Error())
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-snip"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-snip",
		Short:         "Resident screen snip backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Default selection mode reported to the overlay: rectangle|lasso")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "Overlay HTTP API listen address")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Do not show a tray icon")
	cmd.Flags().BoolVar(&opts.noHTTP, "no-http", false, "Do not serve the overlay HTTP API")
	cmd.Flags().Uint64Var(&opts.hostHandle, "host-handle", 0, "Native handle of the host window, used for chrome styling")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their GNU form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"env", "mode", "http-addr", "no-tray", "no-http", "host-handle"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func runResident(opts mainOptions) error {
	enableDPIAwareness()

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPathOverride:     opts.envPath,
			DefaultModeOverride: opts.mode,
			HTTPAddrOverride:    opts.httpAddr,
		},
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	if opts.noTray {
		cfg.EnableTray = false
	}
	logMonitorConfiguration()

	lock, err := acquireLock(lockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	preCtx, preCancel := context.WithTimeout(context.Background(), 3*time.Second)
	err = singleinstance.Preflight(preCtx)
	preCancel()
	if err != nil {
		log.Printf("Pre-flight: %v", err)
		return err
	}

	res, err := buildResident(cfg, screenshot.Display{})
	if err != nil {
		return err
	}
	defer res.bus.Shutdown()
	if opts.hostHandle != 0 {
		if err := res.windows.Attach(cfg.HostWindow, uintptr(opts.hostHandle)); err != nil {
			log.Printf("Attach host handle: %v", err)
		}
	}
	res.ctrl.ApplyChrome()

	log.Printf("Screen Snip initialized")
	log.Printf("Hotkey: %s", cfg.Hotkey)
	log.Printf("Default mode: %s", cfg.DefaultMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if !opts.noHTTP {
		go func() {
			if err := res.api.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				log.Printf("http api stopped: %v", err)
			}
		}()
	}

	tooltip := fmt.Sprintf("Screen Snip - Press %s to snip", cfg.Hotkey)
	res.loop.SetDefaultTooltip(tooltip)
	tray.UpdateTooltip(tooltip)
	res.loop.StartHotkey(cfg.Hotkey)

	if !cfg.EnableTray {
		return loopResult(res.loop.Run(ctx))
	}

	// The tray owns the main thread; the loop runs beside it.
	runtime.LockOSThread()
	loopErr := make(chan error, 1)
	go func() {
		err := res.loop.Run(ctx)
		tray.Quit()
		loopErr <- err
	}()
	tray.Run(tray.Options{
		Hotkey:   cfg.Hotkey,
		OnSnip:   res.loop.TriggerStart,
		OnCancel: res.loop.TriggerCancel,
		OnQuit:   cancel,
	})
	cancel()
	return loopResult(<-loopErr)
}

func loopResult(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("event loop stopped: %w", err)
}

// resident bundles the wired components of a running backend.
type resident struct {
	bus     *events.Bus
	windows *window.Registry
	ctrl    *snip.Controller
	loop    *eventloop.Loop
	api     *httpapi.Server
}

func buildResident(cfg *config.Config, capturer screenshot.Capturer) (*resident, error) {
	bus := events.NewBus()
	windows := window.NewRegistry(bus, cfg.HostWindow)

	var emitter snip.Emitter = bus
	if cfg.CopyToClipboard {
		emitter = eventloop.ClipboardEmitter{Next: bus, Write: clipboard.WriteImage}
	}

	ctrl, err := snip.New(snip.Options{
		Windows:       windows,
		Events:        emitter,
		Capturer:      capturer,
		Encoder:       encoder.New(encoder.ParseCompression(cfg.PNGCompression)),
		Session:       session.New(),
		Diagnostics:   snip.LogDiagnostics{},
		Chrome:        chrome.New(cfg.EnableChrome),
		HostWindow:    cfg.HostWindow,
		OverlayWindow: cfg.OverlayWindow,
		OverlayURL:    cfg.OverlayURL,
		DefaultMode:   cfg.DefaultMode,
	})
	if err != nil {
		bus.Shutdown()
		return nil, err
	}

	api := httpapi.New(ctrl, bus)
	api.SetWindows(windows)
	return &resident{
		bus:     bus,
		windows: windows,
		ctrl:    ctrl,
		loop:    eventloop.New(ctrl, bus),
		api:     api,
	}, nil
}

func lockPath() string {
	return filepath.Join(os.TempDir(), "screen-snip.lock")
}

func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another screen-snip resident holds %s", path)
	}
	return lock, nil
}
