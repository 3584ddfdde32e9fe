package scrape

import "time"

// ChannelID is the catalog's opaque identifier for a channel. It is assigned
// upstream and has no local meaning beyond acting as the join/primary key.
type ChannelID string

// Channel is the enriched record built per admitted candidate and persisted
// by the ChannelStore. Numeric fields are never negative; absent upstream
// values resolve to 0, Country to "Unknown", and Email to the empty string.
type Channel struct {
	ID          ChannelID `json:"channel_id"`
	Title       string    `json:"channel_title"`
	Link        string    `json:"channel_link"`
	Subscribers int64     `json:"subscribers"`
	Views       int64     `json:"views"`
	Videos      int64     `json:"videos"`
	Country     string    `json:"country"`
	Email       string    `json:"business_email,omitempty"`

	// ObservedAt is stamped at enrichment time, not at persistence time.
	ObservedAt time.Time `json:"scraped_at"`
}

// CandidateFailure records a candidate whose detail lookup failed; the run
// continues past it.
type CandidateFailure struct {
	ID    ChannelID `json:"channel_id"`
	Error string    `json:"error"`
}

// RunResult summarizes one pipeline invocation. Written holds the channels
// actually upserted this run, in discovery order.
type RunResult struct {
	RunID      string             `json:"run_id"`
	Keyword    string             `json:"keyword"`
	Discovered int                `json:"discovered"`
	Written    []Channel          `json:"written"`
	Failures   []CandidateFailure `json:"failures,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}
