package eventloop

import (
	"log"

	"screen-snip/src/encoder"
	"screen-snip/src/events"
	"screen-snip/src/snip"
)

// ClipboardEmitter forwards events to next and additionally copies completed
// snips to the clipboard as PNG. Clipboard failures are logged, not returned.
type ClipboardEmitter struct {
	Next  snip.Emitter
	Write func(png []byte) error
}

func (e ClipboardEmitter) Emit(target, event, payload string) error {
	if event == events.SnipComplete && e.Write != nil {
		if png, err := encoder.ParseDataURL(payload); err != nil {
			log.Printf("eventloop: clipboard copy skipped: %v", err)
		} else if err := e.Write(png); err != nil {
			log.Printf("eventloop: clipboard copy failed: %v", err)
		} else {
			log.Printf("eventloop: copied %d byte snip to clipboard", len(png))
		}
	}
	return e.Next.Emit(target, event, payload)
}
