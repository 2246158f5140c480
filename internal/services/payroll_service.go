package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vandehoeken/portal/internal/ledger"
	"github.com/vandehoeken/portal/internal/models"
	"github.com/vandehoeken/portal/internal/notify"
)

// PayrollService manages government jobs, employee assignments and the
// daily salary run.
type PayrollService struct {
	db        *sql.DB
	ledger    *ledger.Service
	sink      notify.Sink
	validator *validator.Validate
}

// JobRequest represents a job posting payload
// @Description Job posting request structure
type JobRequest struct {
	Title       string `json:"title" validate:"required,min=2" example:"Postmaster"`   // Position title
	Department  string `json:"department" validate:"required" example:"Postal Office"` // Government department
	Description string `json:"description" example:"Runs the national post"`           // Position description
	Salary      int64  `json:"salary" validate:"required,gt=0" example:"50"`           // Daily salary in whole VHS
	Location    string `json:"location" example:"Capital District"`                    // Work location
	Type        string `json:"type" validate:"required" example:"Full-time"`           // Full-time, Part-time, Contract
}

// AssignRequest represents a job assignment payload
// @Description Job assignment request structure
type AssignRequest struct {
	UserEmail string `json:"user_email" validate:"required,email" example:"citizen@vandehoeken.gov"` // Employee email
	JobID     int64  `json:"job_id" validate:"required" example:"1"`                                 // Job being assigned
}

// SalaryRequest represents a salary update payload
// @Description Salary update request structure
type SalaryRequest struct {
	DailySalary int64 `json:"daily_salary" validate:"required,gt=0" example:"75"` // New daily salary in whole VHS
}

func NewPayrollService(db *sql.DB, ledgerService *ledger.Service, sink notify.Sink) *PayrollService {
	return &PayrollService{
		db:        db,
		ledger:    ledgerService,
		sink:      sink,
		validator: validator.New(),
	}
}

// ListJobs returns open government positions
// @Summary List jobs
// @Description List open government positions
// @Tags jobs
// @Produce json
// @Success 200 {array} models.Job "Open jobs"
// @Failure 500 {string} string "Internal server error"
// @Router /jobs [get]
func (s *PayrollService) ListJobs(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, title, department, description, salary, location, type, status, created_at
		FROM jobs
		WHERE status = 'open'
		ORDER BY created_at DESC
	`)
	if err != nil {
		log.Printf("[PAYROLL] Job listing failed: %v", err)
		SendErrorResponse(w, "Failed to list jobs", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Department, &j.Description,
			&j.Salary, &j.Location, &j.Type, &j.Status, &j.CreatedAt); err != nil {
			log.Printf("[PAYROLL] Job scan failed: %v", err)
			SendErrorResponse(w, "Failed to list jobs", http.StatusInternalServerError, nil)
			return
		}
		jobs = append(jobs, j)
	}

	WriteJSON(w, http.StatusOK, jobs)
}

// CreateJob posts a new government position
// @Summary Create job
// @Description Post a new government position (admin only)
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body JobRequest true "Job posting"
// @Success 201 {object} models.Job "Created job"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/jobs [post]
func (s *PayrollService) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var job models.Job
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO jobs (title, department, description, salary, location, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'open', NOW())
		RETURNING id, title, department, description, salary, location, type, status, created_at
	`, req.Title, req.Department, req.Description, req.Salary, req.Location, req.Type).Scan(
		&job.ID, &job.Title, &job.Department, &job.Description, &job.Salary,
		&job.Location, &job.Type, &job.Status, &job.CreatedAt)
	if err != nil {
		log.Printf("[PAYROLL] Job creation failed: %v", err)
		SendErrorResponse(w, "Failed to create job", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// ListAssignments returns all job assignments
// @Summary List assignments
// @Description List all job assignments (admin only)
// @Tags jobs
// @Produce json
// @Success 200 {array} models.JobAssignment "Assignments"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/assignments [get]
func (s *PayrollService) ListAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_email, job_id, job_title, daily_salary, status, start_date
		FROM job_assignments
		ORDER BY start_date DESC
	`)
	if err != nil {
		log.Printf("[PAYROLL] Assignment listing failed: %v", err)
		SendErrorResponse(w, "Failed to list assignments", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	assignments := []models.JobAssignment{}
	for rows.Next() {
		var a models.JobAssignment
		if err := rows.Scan(&a.ID, &a.UserEmail, &a.JobID, &a.JobTitle,
			&a.DailySalary, &a.Status, &a.StartDate); err != nil {
			log.Printf("[PAYROLL] Assignment scan failed: %v", err)
			SendErrorResponse(w, "Failed to list assignments", http.StatusInternalServerError, nil)
			return
		}
		assignments = append(assignments, a)
	}

	WriteJSON(w, http.StatusOK, assignments)
}

// AssignJob puts an employee on the payroll for a job
// @Summary Assign job
// @Description Assign a citizen to a government job (admin only)
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body AssignRequest true "Assignment"
// @Success 201 {object} models.JobAssignment "Created assignment"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Job not found"
// @Router /admin/assignments [post]
func (s *PayrollService) AssignJob(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var title string
	var salary int64
	err := s.db.QueryRowContext(r.Context(),
		"SELECT title, salary FROM jobs WHERE id = $1", req.JobID).Scan(&title, &salary)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Job not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PAYROLL] Job lookup failed for %d: %v", req.JobID, err)
		SendErrorResponse(w, "Failed to assign job", http.StatusInternalServerError, nil)
		return
	}

	// Salary is snapshotted onto the assignment; later job edits don't
	// change existing paychecks.
	var a models.JobAssignment
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO job_assignments (user_email, job_id, job_title, daily_salary, status, start_date)
		VALUES ($1, $2, $3, $4, 'active', NOW())
		RETURNING id, user_email, job_id, job_title, daily_salary, status, start_date
	`, req.UserEmail, req.JobID, title, salary).Scan(
		&a.ID, &a.UserEmail, &a.JobID, &a.JobTitle, &a.DailySalary, &a.Status, &a.StartDate)
	if err != nil {
		log.Printf("[PAYROLL] Assignment failed for %s: %v", req.UserEmail, err)
		SendErrorResponse(w, "Failed to assign job", http.StatusInternalServerError, nil)
		return
	}

	if err := s.sink.Send(r.Context(), a.UserEmail, "Job Assignment - Vandehoeken Government",
		fmt.Sprintf("You have been assigned the position of %s with a daily salary of %d VHS.", a.JobTitle, a.DailySalary)); err != nil {
		log.Printf("[PAYROLL] Assignment notification failed for %s: %v", a.UserEmail, err)
	}

	WriteJSON(w, http.StatusCreated, a)
}

// UpdateSalary changes an assignment's daily salary
// @Summary Update salary
// @Description Change the daily salary of an active assignment (admin only)
// @Tags jobs
// @Accept json
// @Produce json
// @Param assignmentID path int true "Assignment id"
// @Param request body SalaryRequest true "New salary"
// @Success 200 {object} map[string]string "Updated"
// @Failure 404 {string} string "Assignment not found"
// @Router /admin/assignments/{assignmentID}/salary [put]
func (s *PayrollService) UpdateSalary(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid assignment id", http.StatusBadRequest, nil)
		return
	}

	var req SalaryRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE job_assignments SET daily_salary = $1 WHERE id = $2 AND status = 'active'
	`, req.DailySalary, assignmentID)
	if err != nil {
		log.Printf("[PAYROLL] Salary update failed for %d: %v", assignmentID, err)
		SendErrorResponse(w, "Failed to update salary", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Assignment not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Salary updated"})
}

// Terminate ends an assignment
// @Summary Terminate assignment
// @Description Remove an employee from the payroll (admin only)
// @Tags jobs
// @Produce json
// @Param assignmentID path int true "Assignment id"
// @Success 200 {object} map[string]string "Terminated"
// @Failure 404 {string} string "Assignment not found"
// @Router /admin/assignments/{assignmentID}/terminate [post]
func (s *PayrollService) Terminate(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid assignment id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE job_assignments SET status = 'terminated' WHERE id = $1 AND status = 'active'
	`, assignmentID)
	if err != nil {
		log.Printf("[PAYROLL] Termination failed for %d: %v", assignmentID, err)
		SendErrorResponse(w, "Failed to terminate assignment", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Assignment not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Assignment terminated"})
}

// RunPayroll pays every active assignment its daily salary
// @Summary Run payroll
// @Description Credit every active assignment with its daily salary (admin only)
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]any "Per-employee results"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/payroll/run [post]
func (s *PayrollService) RunPayroll(w http.ResponseWriter, r *http.Request) {
	results, err := s.ledger.RunPayroll(r.Context())
	if err != nil {
		log.Printf("[PAYROLL] Payroll run failed: %v", err)
		SendLedgerError(w, "payroll run", err)
		return
	}

	paid := 0
	for _, res := range results {
		if res.Credited {
			paid++
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"paid":    paid,
		"total":   len(results),
		"results": results,
	})
}

// decodeAndValidate reads a single JSON object into dst and validates it.
// Writes the error response itself and reports whether the request is usable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := v.Struct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
