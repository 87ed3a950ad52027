package models

import "time"

// Session is the per-user analysis slot. HasSummary is false until the
// first report has been summarized.
type Session struct {
	ID         string    `json:"id"`
	Summary    string    `json:"summary,omitempty"`
	HasSummary bool      `json:"has_summary"`
	SourceName string    `json:"source_name,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}
