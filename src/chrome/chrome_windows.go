//go:build windows

package chrome

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	dwmwaUseImmersiveDarkMode = 20
	dwmwaSystemBackdropType   = 38
	// DWMSBT_TRANSIENTWINDOW: acrylic backdrop on Windows 11.
	dwmsbtTransientWindow = 3
)

var (
	dwmapi                    = windows.NewLazySystemDLL("dwmapi.dll")
	procDwmSetWindowAttribute = dwmapi.NewProc("DwmSetWindowAttribute")
)

type dwmStyler struct{}

func newPlatformStyler() Styler { return dwmStyler{} }

func (dwmStyler) Apply(handle uintptr) error {
	if handle == 0 {
		return nil
	}
	if err := procDwmSetWindowAttribute.Find(); err != nil {
		// Pre-Vista or stripped system: nothing to style.
		return nil
	}
	if err := setAttribute(handle, dwmwaUseImmersiveDarkMode, 1); err != nil {
		return fmt.Errorf("dark mode: %w", err)
	}
	if err := setAttribute(handle, dwmwaSystemBackdropType, dwmsbtTransientWindow); err != nil {
		return fmt.Errorf("backdrop: %w", err)
	}
	return nil
}

func setAttribute(hwnd uintptr, attr uint32, value uint32) error {
	hr, _, _ := procDwmSetWindowAttribute.Call(
		hwnd,
		uintptr(attr),
		uintptr(unsafe.Pointer(&value)),
		unsafe.Sizeof(value),
	)
	if hr != 0 {
		return fmt.Errorf("DwmSetWindowAttribute(%d) HRESULT 0x%08x", attr, uint32(hr))
	}
	return nil
}
