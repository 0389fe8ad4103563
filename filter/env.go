package filter

import "github.com/tcriess/lightspeed-meet/types"

/*
Here the Env used in the subscriber filter expressions is defined.
Once this struct is fixed, it should not be changed, otherwise filters
stored in subscriber URLs or bookmarks may not compile any more
(f.e. if properties are renamed etc.)
*/

type Env struct {
	Speaker   string
	Text      string
	IsFinal   bool
	Timestamp string
}

// FromEvent maps a transcript event onto the filter environment.
func FromEvent(e *types.TranscriptEvent) Env {
	return Env{
		Speaker:   e.Speaker,
		Text:      e.Text,
		IsFinal:   e.IsFinal,
		Timestamp: e.Timestamp,
	}
}
