package store

import "time"

// SessionRecord identifies a browser session left running for a later
// reconnect.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	Endpoint  string    `json:"endpoint"`
	Engine    string    `json:"engine"`
	SavedAt   time.Time `json:"saved_at"`
}

// Submission is one row of submission history.
type Submission struct {
	ID          int64     `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Debug       bool      `json:"debug"`
	OK          bool      `json:"ok"`
	TextLength  int       `json:"text_length"`
	Attachments int       `json:"attachments"`
	Uploaded    int       `json:"uploaded"`
	// Scheduled is the zero time when the post was not scheduled.
	Scheduled time.Time `json:"scheduled"`
}
