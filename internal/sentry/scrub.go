// Package sentry wires optional Sentry error reporting and scrubs events so
// PINs, tokens and voter names never leave the process.
package sentry

import (
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are canonical HTTP header names that are redacted.
var sensitiveHeaders = map[string]bool{
	"Authorization":    true,
	"Cookie":           true,
	"Set-Cookie":       true,
	"X-Real-Ip":        true,
	"X-Forwarded-For":  true,
	"Cf-Connecting-Ip": true,
}

// sensitiveKeys are lowercased field names redacted from tags, extra and breadcrumb data.
var sensitiveKeys = map[string]bool{
	"pin":           true,
	"resetpin":      true,
	"token":         true,
	"jwt":           true,
	"secret":        true,
	"password":      true,
	"authorization": true,
	"cookie":        true,
	"name":          true,
	"voter":         true,
	"voters":        true,
	"ip":            true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Init configures the global Sentry client. With an empty dsn it does nothing
// and returns a no-op flush.
func Init(dsn, environment string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   dsn,
		Environment:           environment,
		AttachStacktrace:      true,
		SendDefaultPII:        false,
		BeforeSend:            ScrubEvent,
		BeforeSendTransaction: ScrubTransaction,
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts sensitive headers, strips request bodies, cookies and query
// strings, and scrubs tags, extra data and breadcrumbs.
func ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[http.CanonicalHeaderKey(header)] {
				event.Request.Headers[header] = filtered
			}
		}
		// Bodies carry PINs and voter names
		event.Request.Data = ""
		event.Request.Cookies = ""
		event.Request.QueryString = ""
	}

	event.User = sentry.User{}

	for key := range event.Tags {
		if isSensitiveKey(key) {
			event.Tags[key] = filtered
		}
	}

	for key := range event.Extra {
		if isSensitiveKey(key) {
			event.Extra[key] = filtered
		}
	}

	for _, crumb := range event.Breadcrumbs {
		if crumb == nil {
			continue
		}
		for key := range crumb.Data {
			if isSensitiveKey(key) {
				crumb.Data[key] = filtered
			}
		}
	}

	return event
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return ScrubEvent(event, hint)
}
