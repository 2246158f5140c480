package models

import (
	"time"
)

// Account is a citizen's treasury account. Balances are integer VHS and
// never go negative; every mutation goes through the ledger service.
type Account struct {
	ID        int64     `json:"id" db:"id"`
	VNTID     string    `json:"vnt_id" db:"vnt_id"`
	UserEmail string    `json:"user_email" db:"user_email"`
	Balance   int64     `json:"balance" db:"balance"` // in VHS
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
