//go:build !windows

package notification

import "log"

func showPlatform(title, message string, blocking bool) error {
	if blocking {
		log.Printf("ERROR %s: %s", title, message)
		return nil
	}
	log.Printf("%s: %s", title, message)
	return nil
}
