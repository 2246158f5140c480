package models

import "time"

// ServiceRequest is a citizen ticket handled by a government department.
type ServiceRequest struct {
	ID          int64     `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	Category    string    `json:"category" db:"category"`
	Subject     string    `json:"subject" db:"subject"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"` // open, in_progress, resolved
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// OfficeDeclaration records a citizen declaring candidacy or holding of a
// government office.
type OfficeDeclaration struct {
	ID         int64     `json:"id" db:"id"`
	UserEmail  string    `json:"user_email" db:"user_email"`
	Office     string    `json:"office" db:"office"`
	Statement  string    `json:"statement" db:"statement"`
	DeclaredAt time.Time `json:"declared_at" db:"declared_at"`
}
