// internal/app/features/alert/focus.go
package alert

import "github.com/dalemusser/anomalyhub/internal/domain/models"

// FocusOnce scrolls to the alert named by a deep link at most once per page
// view, however many times the list re-renders afterwards.
type FocusOnce struct {
	ref  string
	done bool
}

// NewFocusOnce returns a FocusOnce for ref. done marks a view that already
// scrolled on an earlier render.
func NewFocusOnce(ref string, done bool) *FocusOnce {
	return &FocusOnce{ref: ref, done: done || ref == ""}
}

// Ref is the id or file the view was opened with.
func (f *FocusOnce) Ref() string { return f.ref }

// Done reports whether the scroll has been used up.
func (f *FocusOnce) Done() bool { return f.done }

// Take returns the id of the alert to scroll to in this render, or "".
// A match by id wins over a match by file.
func (f *FocusOnce) Take(alerts []models.Alert) string {
	if f.done || len(alerts) == 0 {
		return ""
	}
	id := match(alerts, f.ref)
	if id != "" {
		f.done = true
	}
	return id
}

func match(alerts []models.Alert, ref string) string {
	for _, a := range alerts {
		if a.ID == ref {
			return a.ID
		}
	}
	for _, a := range alerts {
		if a.File != "" && a.File == ref {
			return a.ID
		}
	}
	return ""
}
