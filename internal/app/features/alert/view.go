// internal/app/features/alert/view.go
package alert

import (
	"html/template"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
)

const timeLayout = "Jan 2, 2006 3:04:05 PM"

// Row is one alert prepared for the list template.
type Row struct {
	ID          string
	Category    string
	Tone        string // danger | warning | info
	When        string
	Description template.HTML
	ClipURL     string
	Highlight   bool
	ScrollTo    bool
}

func toneFor(category string) string {
	switch category {
	case "Fighting":
		return "danger"
	case "Stealing":
		return "warning"
	}
	return "info"
}

// BuildRows maps alerts to rows. Rows matching ref are highlighted on every
// render; only scrollID is scrolled into view.
func BuildRows(alerts []models.Alert, ref, scrollID string, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]Row, 0, len(alerts))
	for _, a := range alerts {
		when := ""
		if !a.Timestamp.IsZero() {
			when = a.Timestamp.In(loc).Format(timeLayout)
		}
		cat := a.Category()
		rows = append(rows, Row{
			ID:          a.ID,
			Category:    cat,
			Tone:        toneFor(cat),
			When:        when,
			Description: htmlsanitize.Description(a.Description),
			ClipURL:     a.ClipURL,
			Highlight:   a.Matches(ref),
			ScrollTo:    scrollID != "" && a.ID == scrollID,
		})
	}
	return rows
}
