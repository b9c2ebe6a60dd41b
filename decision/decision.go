// Package decision turns a previously stored chapter and a freshly extracted
// candidate into the value to persist and a status.
//
// The guards here absorb fetcher and extractor noise: a transient
// mis-render that yields a wildly large or a smaller number never reaches
// the store, so the persisted chapter only moves forward.
package decision

import (
	"github.com/use-agent/chapterwatch/chapter"
	"github.com/use-agent/chapterwatch/models"
)

// Decide applies the transition table. An empty string stands for "no
// value". It has no hidden state.
//
//	previous  candidate  guard                     status  persisted
//	any       none       -                         info    previous
//	none      present    -                         init    candidate
//	present   present    implausible               keep    previous
//	present   present    candidate < previous      keep    previous
//	present   present    candidate == previous     ok      previous
//	present   present    candidate > previous      update  candidate
//
// A candidate that does not sanitize counts as none.
func Decide(previous, candidate string) (string, models.Status) {
	if candidate == "" {
		return previous, models.StatusInfo
	}
	clean, err := chapter.Sanitize(candidate)
	if err != nil {
		return previous, models.StatusInfo
	}
	if previous == "" {
		return clean, models.StatusInit
	}
	if !chapter.IsPlausible(clean) {
		return previous, models.StatusKeep
	}
	switch c := chapter.Compare(clean, previous); {
	case c < 0:
		return previous, models.StatusKeep
	case c == 0:
		return previous, models.StatusOK
	default:
		return clean, models.StatusUpdate
	}
}
