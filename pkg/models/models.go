package models

import "time"

// WorkItem represents a URL and the crawl depth it was discovered at
type WorkItem struct {
	URL   string
	Depth int
}

// EmailCandidate is an address found or synthesized during extraction.
// Address is always lower-cased and normalized.
type EmailCandidate struct {
	Address string `json:"address"`
	Source  Source `json:"source"`
	Domain  string `json:"domain"` // Origin domain the candidate was collected for
}

// ScoredCandidate pairs a candidate with its extraction-stage confidence
type ScoredCandidate struct {
	EmailCandidate
	Score int `json:"score"`
}

// VerificationResult is the verdict for one candidate address
type VerificationResult struct {
	Email      string `json:"email"`
	IsValid    bool   `json:"is_valid"`
	Confidence int    `json:"confidence"` // 0-100
	Reason     string `json:"reason"`
}

// Record is one output row of a pipeline run
type Record struct {
	Email      string `json:"email"`
	Confidence int    `json:"confidence"`
	IsValid    bool   `json:"is_valid"`
	Reason     string `json:"reason"`
	Source     Source `json:"source"`
}

// EventType names a pipeline phase boundary
type EventType string

const (
	EventCrawlStarted         EventType = "crawlStarted"
	EventCrawlCompleted       EventType = "crawlCompleted"
	EventExtractionCompleted  EventType = "extractionCompleted"
	EventVerificationProgress EventType = "verificationProgress"
	EventPipelineCompleted    EventType = "pipelineCompleted"
	EventPipelineStopped      EventType = "pipelineStopped"
	EventPipelineError        EventType = "pipelineError"
)

// Event is a progress notification emitted by the pipeline.
// Only the fields relevant to Type are set.
type Event struct {
	Type           EventType `json:"type"`
	Domain         string    `json:"domain"`
	URLCount       int       `json:"url_count,omitempty"`
	FoundCount     int       `json:"found_count,omitempty"`
	GeneratedCount int       `json:"generated_count,omitempty"`
	Completed      int       `json:"completed,omitempty"`
	Total          int       `json:"total,omitempty"`
	Message        string    `json:"message,omitempty"`
	At             time.Time `json:"at"`
}

// Session describes one discovery run for a domain, as persisted by the store
type Session struct {
	ID             string    `json:"id"`
	Domain         string    `json:"domain"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	URLCount       int       `json:"url_count"`
	FoundCount     int       `json:"found_count"`
	GeneratedCount int       `json:"generated_count"`
	ValidCount     int       `json:"valid_count"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// ResultDBEntry stores the latest verdict for a domain+email pair
type ResultDBEntry struct {
	Record
	SessionID string    `json:"session_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	SeenCount int       `json:"seen_count"`
}
