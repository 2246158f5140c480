package ledger

import (
	"encoding/json"
	"log"
	"time"
)

type auditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	VNTID         string    `json:"vnt_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Details       any       `json:"details"`
}

// AuditLogger emits one structured log line per money movement or failure.
type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogMovement(transactionID, txType, fromVNT, toVNT string, amount int64) {
	a.log(auditEvent{
		Timestamp:     time.Now(),
		EventType:     "MOVEMENT",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "COMPLETED",
		Details: map[string]string{
			"type":     txType,
			"from_vnt": fromVNT,
			"to_vnt":   toVNT,
		},
	})
}

func (a *AuditLogger) LogError(transactionID, vntID string, err error) {
	a.log(auditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		VNTID:         vntID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event auditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
