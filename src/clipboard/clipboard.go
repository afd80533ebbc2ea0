package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
	initErr error
	once    sync.Once
)

// ErrUnavailable is returned when the system clipboard could not be initialized.
var ErrUnavailable = errors.New("clipboard unavailable")

func Init() error {
	once.Do(func() { initErr = clipboard.Init() })
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	return write(clipboard.FmtText, []byte(text))
}

// WriteImage places PNG-encoded image data on the clipboard.
func WriteImage(png []byte) error {
	if len(png) == 0 {
		return errors.New("clipboard: empty image")
	}
	return write(clipboard.FmtImage, png)
}

func write(format clipboard.Format, data []byte) error {
	if err := Init(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(format, data)
	return nil
}
