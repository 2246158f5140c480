package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Sink receives settlement confirmations for out-of-band delivery. The
// ledger treats sends as fire-and-forget: a failed send never affects a
// committed balance change.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is one queued outbound email.
type Message struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

const outboxKey = "mail_outbox"

// Mailer queues messages on Redis for an external delivery worker.
type Mailer struct {
	redis *redis.Client
}

// NewSink returns a Redis-backed mailer, or a log-only sink when Redis is
// unavailable.
func NewSink(redisClient *redis.Client) Sink {
	if redisClient == nil {
		log.Println("[NOTIFY] Redis unavailable, falling back to log-only notifications")
		return &logSink{}
	}
	return &Mailer{redis: redisClient}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := Message{To: to, Subject: subject, Body: body, CreatedAt: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.redis.RPush(ctx, outboxKey, string(data)).Err()
}

// logSink writes notifications to the server log only.
type logSink struct{}

func (l *logSink) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("[NOTIFY] %s -> %s", subject, to)
	return nil
}
