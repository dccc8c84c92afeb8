package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

var scrubbedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		BeforeSend:       scrubEvent,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// scrubEvent drops credentials from captured requests: bearer tokens, cookies and bodies
// that may carry passwords or refresh secrets.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}

	for _, name := range scrubbedHeaders {
		delete(event.Request.Headers, name)
	}
	event.Request.Cookies = ""
	event.Request.Data = ""

	return event
}
