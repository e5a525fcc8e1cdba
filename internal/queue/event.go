// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published whenever a reservation changes state and a
// party should hear about it. It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type NotificationEvent struct {
    UserID    uint64         `json:"user_id"`
    Event     string         `json:"event"`
    Payload   map[string]any `json:"payload"`
    EmittedAt string         `json:"emitted_at"`
}
