package runtimeinit

import (
	"fmt"
	"log"

	"screen-snip/src/clipboard"
	"screen-snip/src/config"
	"screen-snip/src/screenshot"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(enableFileLogging bool, dir string)
	// RequireDisplay fails startup when no display can be enumerated.
	RequireDisplay bool
	// InitClipboard overrides clipboard initialization; nil uses the system clipboard.
	InitClipboard func() error
	// DisplayBounds overrides display probing; nil uses the primary display.
	DisplayBounds func() error
}

func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging, cfg.LogDir)
	}

	probe := opts.DisplayBounds
	if probe == nil {
		probe = func() error {
			_, err := screenshot.GetDisplayBounds()
			return err
		}
	}
	if err := probe(); err != nil {
		if opts.RequireDisplay {
			return nil, fmt.Errorf("no usable display: %w", err)
		}
		log.Printf("Display probe failed: %v", err)
	}

	if cfg.CopyToClipboard {
		initClipboard := opts.InitClipboard
		if initClipboard == nil {
			initClipboard = clipboard.Init
		}
		if err := initClipboard(); err != nil {
			// Snips still reach the host window; only the clipboard copy is lost.
			log.Printf("Clipboard unavailable, disabling copy: %v", err)
			cfg.CopyToClipboard = false
		}
	}

	return cfg, nil
}
