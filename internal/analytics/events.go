// Package analytics records what users search for. Search events flow from
// the HTTP handler through a Collector to a Publisher (Kafka, or straight
// into a local Aggregator) and are summarised by the Aggregator.
package analytics

import "time"

type EventType string

const (
	EventSearch   EventType = "search"
	EventNoVector EventType = "no_vector"
	EventError    EventType = "error"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Model     string    `json:"model"`
	TopK      int       `json:"top_k"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	NoVector  bool      `json:"no_vector"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
