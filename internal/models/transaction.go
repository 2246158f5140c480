package models

import (
	"time"
)

// Transaction types. AdminAdjustment is the only funding-injection path.
const (
	TxPurchase        = "purchase"
	TxTransferSent    = "transfer_sent"
	TxAdminAdjustment = "admin_adjustment"
)

// StatusCompleted is the only status the ledger produces. Settlement is
// synchronous; there is no pending/failed lifecycle.
const StatusCompleted = "completed"

// Transaction is one append-only ledger record. Exactly one Transaction is
// written per committed balance change, with amount equal to the delta.
type Transaction struct {
	ID            int64     `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	Type          string    `json:"type" db:"type"`
	Amount        int64     `json:"amount" db:"amount"`          // in VHS, always positive
	FromVNTID     *string   `json:"from_vnt_id" db:"from_vnt_id"` // nil for admin-originated credits
	ToVNTID       *string   `json:"to_vnt_id" db:"to_vnt_id"`     // nil for pure debits
	FromEmail     string    `json:"from_email" db:"from_email"`
	ToEmail       string    `json:"to_email" db:"to_email"`
	Description   string    `json:"description" db:"description"`
	ItemName      string    `json:"item_name,omitempty" db:"item_name"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
