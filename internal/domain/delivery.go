package domain

import (
	"context"
	"time"
)

// Routing keys on the broadcast topic.
const (
	RoutingKeyUpdate  = "update"
	RoutingKeyMatched = "matched"
)

// Delivery is one message pulled from the work queue. Exactly one of Ack or
// Requeue should be called once handling finishes.
type Delivery struct {
	Key          []byte
	Value        []byte
	Topic        string
	Partition    int
	Offset       int64
	Timestamp    time.Time
	Headers      map[string]string
	Redeliveries int

	Ack     func(ctx context.Context) error
	Requeue func(ctx context.Context) error
}

// Broadcast is one message read back from the broadcast topic.
type Broadcast struct {
	RoutingKey string
	Payload    []byte
	ReceivedAt time.Time
}

// UpdateMessage announces a refreshed live snapshot.
type UpdateMessage struct {
	Source    string           `json:"source"`
	Count     int              `json:"count"`
	Disasters []DisasterRecord `json:"disasters"`
}

// MatchedMessage carries the alerting results of one batch.
type MatchedMessage struct {
	Count   int           `json:"count"`
	Results []MatchResult `json:"results"`
}

// SourceEONET names the disaster feed in announcements and API responses.
const SourceEONET = "EONET"
