package models

// Status is the outcome of one series check.
type Status string

const (
	// StatusInit means no chapter was stored before; the candidate is persisted.
	StatusInit Status = "init"
	// StatusUpdate means the candidate is strictly greater than the stored chapter.
	StatusUpdate Status = "update"
	// StatusOK means the candidate equals the stored chapter.
	StatusOK Status = "ok"
	// StatusKeep means a guard rejected the candidate and the stored chapter is retained.
	StatusKeep Status = "keep"
	// StatusInfo means no usable candidate was found or the source URL is invalid.
	StatusInfo Status = "info"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusUpdate, StatusInit, StatusOK, StatusKeep, StatusInfo}

// Persists reports whether the status writes the candidate to the store.
func (s Status) Persists() bool {
	return s == StatusInit || s == StatusUpdate
}

// SeriesRecord is one tracked series as stored on disk.
//
// Extra holds every key the tracker does not know about so that saving a
// record never drops fields added by hand or by other tools.
type SeriesRecord struct {
	Name    string         `yaml:"name" json:"name"`
	URL     string         `yaml:"url" json:"url"`
	Chapter string         `yaml:"chapter,omitempty" json:"chapter,omitempty"`
	Extra   map[string]any `yaml:",inline" json:"-"`
}

// SeriesResult is the outcome of processing one series in a run.
type SeriesResult struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Previous string `json:"previous,omitempty"`

	// Chapter is the value stored after the decision (previous or candidate).
	Chapter string `json:"chapter,omitempty"`

	// Candidate is the best extracted chapter, empty when none survived.
	Candidate string `json:"candidate,omitempty"`

	Status Status `json:"status"`

	// FailureReason is the fetcher's aggregated diagnostic, if any.
	FailureReason string `json:"failure_reason,omitempty"`

	// Engine is the engine whose markup was used.
	Engine string `json:"engine,omitempty"`

	// Strategy is the extraction strategy resolved for the URL.
	Strategy string `json:"strategy,omitempty"`
}
