//go:build !windows

package main

import "screen-snip/src/screenshot"

func enableDPIAwareness() {}

func logMonitorConfiguration() { screenshot.LogDisplays() }
