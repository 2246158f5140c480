package models

import "time"

// Job is an open government position.
type Job struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Department  string    `json:"department" db:"department"`
	Description string    `json:"description" db:"description"`
	Salary      int64     `json:"salary" db:"salary"` // daily salary in VHS
	Location    string    `json:"location" db:"location"`
	Type        string    `json:"type" db:"type"`     // Full-time, Part-time, Contract
	Status      string    `json:"status" db:"status"` // open or closed
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// JobAssignment statuses.
const (
	AssignmentActive     = "active"
	AssignmentTerminated = "terminated"
)

// JobAssignment links an employee to a job and drives payroll: one credit
// plus one admin_adjustment transaction per active assignment per run.
type JobAssignment struct {
	ID          int64     `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	JobID       int64     `json:"job_id" db:"job_id"`
	JobTitle    string    `json:"job_title" db:"job_title"`
	DailySalary int64     `json:"daily_salary" db:"daily_salary"` // in VHS
	Status      string    `json:"status" db:"status"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
}
