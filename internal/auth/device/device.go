// Package device derives a human-readable device name for session listings.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<browser> on <os>" for a User-Agent header.
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown"
	}

	var system string
	if ua.Mobile() {
		system = ua.Platform()
	} else {
		system = ua.OSInfo().Name
	}
	if system == "" {
		system = "Unknown"
	}
	return strings.TrimSpace(browser) + " on " + strings.TrimSpace(system)
}

// Label picks the name stored on a session: the client-supplied device id wins when the
// User-Agent says nothing useful.
func Label(deviceID, userAgent string) string {
	name := ParseUserAgent(userAgent)
	if name == unknownDevice && deviceID != "" {
		return deviceID
	}
	return name
}
