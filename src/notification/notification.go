package notification

import (
	"log"
	"unicode/utf8"
)

const maxMessageLen = 300

// display is the platform dialog; blocking reports whether the caller waits for dismissal.
var display = showPlatform

// Show displays an informational message without blocking the caller.
func Show(title, message string) {
	go func() {
		if err := display(title, shorten(message), false); err != nil {
			log.Printf("Failed to show notification: %v", err)
		}
	}()
}

// ShowBlockingError displays an error and returns once it is dismissed.
func ShowBlockingError(title, message string) {
	if err := display(title, shorten(message), true); err != nil {
		log.Printf("Failed to show error dialog: %v", err)
	}
}

func shorten(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
