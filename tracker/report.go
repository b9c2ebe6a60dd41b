package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/chapterwatch/models"
)

// ReportHeader opens every report message.
const ReportHeader = "**Estado de tus series**"

var statusEmoji = map[models.Status]string{
	models.StatusUpdate: "🟢",
	models.StatusInit:   "✨",
	models.StatusOK:     "✅",
	models.StatusKeep:   "🛡️",
	models.StatusInfo:   "ℹ️",
}

// Report summarizes one run.
type Report struct {
	ID         string                `json:"id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Results    []models.SeriesResult `json:"results"`

	// Skipped names the series whose processing failed; they are absent
	// from Results and their records are untouched.
	Skipped []string `json:"skipped,omitempty"`

	// Changed is true when at least one record was initialized or updated.
	Changed bool `json:"changed"`

	Counts map[models.Status]int `json:"counts"`
}

// FormatLine renders one report line. An empty chapter prints as "?".
func FormatLine(name, chapter string, status models.Status) string {
	emoji, ok := statusEmoji[status]
	if !ok {
		emoji = "▪️"
	}
	if chapter == "" {
		chapter = "?"
	}
	return fmt.Sprintf("%s **%s** — cap **%s** (%s)", emoji, name, chapter, status)
}

// Text is the notification body: the header and one line per series in
// store order.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(ReportHeader)
	for _, res := range r.Results {
		b.WriteByte('\n')
		b.WriteString(FormatLine(res.Name, res.Chapter, res.Status))
	}
	return b.String()
}

// Summary is the per-status tally printed at the end of a run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d series in %s\n", r.ID, len(r.Results)+len(r.Skipped),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	for _, s := range models.Statuses {
		fmt.Fprintf(&b, "  %-7s %d\n", s, r.Counts[s])
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "  %-7s %d (%s)\n", "skipped", len(r.Skipped), strings.Join(r.Skipped, ", "))
	}
	return b.String()
}

func (r *Report) add(res models.SeriesResult) {
	r.Results = append(r.Results, res)
	r.Counts[res.Status]++
	if res.Status.Persists() {
		r.Changed = true
	}
}
