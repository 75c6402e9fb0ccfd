// Package templates renders the server side pages.
package templates

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aouyang1/inkframe/dispatch"
	"github.com/aouyang1/inkframe/imageindex"
)

func orientationLabel(o imageindex.Orientation) string {
	if o == imageindex.Any {
		return "n/a"
	}
	return string(o)
}

func indexedAtLabel(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func externalEventURL(linkName, action string) string {
	return fmt.Sprintf("/externalevent/%s/%s", url.PathEscape(linkName), action)
}

// resultClass is "skip", "fail" or empty for a clean run.
func resultClass(r dispatch.FrameResult) string {
	switch {
	case r.Skipped:
		return "skip"
	case !r.OK():
		return "fail"
	}
	return ""
}

func resultStatus(r dispatch.FrameResult) string {
	switch {
	case r.Skipped:
		return "skipped: " + r.Reason
	case r.Err != nil:
		return r.Err.Error()
	case r.Run.ExitCode != 0:
		return fmt.Sprintf("exit %d", r.Run.ExitCode)
	}
	return "ok"
}
