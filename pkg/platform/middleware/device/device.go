// Package device reads the caller-supplied device identifier. Sessions are bound to it
// and tokens carry it, so one user can tell their devices apart when listing sessions.
package device

import (
	"net/http"
	"strings"

	"adminguard/pkg/requestcontext"
)

const (
	HeaderName = "X-Device-ID"
	CookieName = "__Secure-Device-ID"

	maxLength = 128
)

// Middleware stores the device id from the header, or the device cookie, on the context.
// Overlong values are ignored.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deviceID := FromRequest(r); deviceID != "" {
			r = r.WithContext(requestcontext.WithDeviceID(r.Context(), deviceID))
		}
		next.ServeHTTP(w, r)
	})
}

// FromRequest returns the device id the client sent, or "".
func FromRequest(r *http.Request) string {
	deviceID := strings.TrimSpace(r.Header.Get(HeaderName))
	if deviceID == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			deviceID = strings.TrimSpace(c.Value)
		}
	}
	if len(deviceID) > maxLength {
		return ""
	}
	return deviceID
}
