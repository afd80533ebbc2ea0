//go:build windows

package notification

import (
	"golang.org/x/sys/windows"
)

const (
	mbOK              = 0x00000000
	mbIconError       = 0x00000010
	mbIconInformation = 0x00000040
	mbSetForeground   = 0x00010000
	mbTopMost         = 0x00040000
)

func showPlatform(title, message string, blocking bool) error {
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	messagePtr, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return err
	}
	flags := uint32(mbOK | mbSetForeground | mbTopMost | mbIconInformation)
	if blocking {
		flags = mbOK | mbSetForeground | mbTopMost | mbIconError
	}
	_, err = windows.MessageBox(0, messagePtr, titlePtr, flags)
	return err
}
