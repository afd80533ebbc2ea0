//go:build windows

package main

import (
	"log"

	"golang.org/x/sys/windows"
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetProcessDpiAwareness = shcore.NewProc("SetProcessDpiAwareness")
	procSetProcessDPIAware     = user32.NewProc("SetProcessDPIAware")
	procGetSystemMetrics       = user32.NewProc("GetSystemMetrics")
)

const (
	processPerMonitorDPIAware = 2

	smCXScreen  = 0
	smCYScreen  = 1
	smCMonitors = 80
)

// enableDPIAwareness makes capture coordinates physical pixels on scaled displays.
func enableDPIAwareness() {
	if err := procSetProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := procSetProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Printf("DPI: per-monitor awareness enabled")
		} else {
			log.Printf("DPI: SetProcessDpiAwareness failed: 0x%08x", uint32(ret))
		}
		return
	}
	if err := procSetProcessDPIAware.Find(); err != nil {
		log.Printf("DPI: no awareness API available")
		return
	}
	if ret, _, _ := procSetProcessDPIAware.Call(); ret != 0 {
		log.Printf("DPI: system awareness enabled (fallback)")
	}
}

func logMonitorConfiguration() {
	if err := procGetSystemMetrics.Find(); err != nil {
		return
	}
	metric := func(i int) int {
		ret, _, _ := procGetSystemMetrics.Call(uintptr(i))
		return int(int32(ret))
	}
	log.Printf("MONITOR: %d monitors, primary %dx%d", metric(smCMonitors), metric(smCXScreen), metric(smCYScreen))
}
