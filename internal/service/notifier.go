// Package service provides the notification publisher the engine talks to.
// Errors are logged and returned to allow callers to ignore failures
// without interrupting the main request flow.
package service

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/parking-space-reservation/internal/queue"
)

// QueueNotifier implements engine.Notifier by publishing a
// NotificationEvent to the reservation.notifications queue. Each publish
// dials its own connection, which keeps the publisher robust against
// broker restarts at the cost of connection churn; reservation state
// changes are infrequent enough that this trade is fine. Messages are
// marked persistent.
type QueueNotifier struct {
    URL string
}

// NewQueueNotifier builds a notifier publishing to the given broker URL.
func NewQueueNotifier(url string) *QueueNotifier { return &QueueNotifier{URL: url} }

// Notify publishes one notification event. Any error is logged and
// returned so the caller can choose to ignore it.
func (n *QueueNotifier) Notify(ctx context.Context, userID uint64, event string, payload map[string]any) error {
    conn, err := amqp.Dial(n.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        "reservation.notifications", // name
        true,                        // durable
        false,                       // autoDelete
        false,                       // exclusive
        false,                       // noWait
        nil,                         // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(q.NotificationEvent{
        UserID:    userID,
        Event:     event,
        Payload:   payload,
        EmittedAt: time.Now().UTC().Format(time.RFC3339),
    })
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",                          // default exchange
        "reservation.notifications", // routing key = queue name
        false,                       // mandatory
        false,                       // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
