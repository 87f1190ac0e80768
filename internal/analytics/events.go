package analytics

import "time"

type EventType string

const (
	EventQuery       EventType = "query"
	EventCacheHit    EventType = "cache_hit"
	EventZeroResult  EventType = "zero_result"
	EventQueryFailed EventType = "query_failed"
	EventCount       EventType = "count"
	EventFederated   EventType = "federated"
)

// QueryEvent describes one evaluated request.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	QueryType string    `json:"querytype"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	QueryID   string    `json:"query_id,omitempty"`
}

// Classify derives the event type from the outcome fields.
func (e QueryEvent) Classify() EventType {
	switch {
	case e.Error != "":
		return EventQueryFailed
	case e.CacheHit:
		return EventCacheHit
	case e.Returned == 0:
		return EventZeroResult
	default:
		return EventQuery
	}
}
