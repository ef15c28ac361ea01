package history

import (
	"time"

	"github.com/google/uuid"
)

// Record is one completed session's transcript. Records are immutable after
// creation; CreatedAt is stored as RFC3339 so the document stays readable
// by the browser UI without a schema.
type Record struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	Seconds   float64 `json:"seconds"`
	Text      string  `json:"text"`
}

// NewRecord builds a record for a transcript completed now.
func NewRecord(text string, seconds float64) Record {
	if seconds < 0 {
		seconds = 0
	}
	return Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Seconds:   seconds,
		Text:      text,
	}
}
