package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vandehoeken/portal/internal/models"
)

// RequestsService handles citizen service requests and office declarations.
type RequestsService struct {
	db        *sql.DB
	validator *validator.Validate
}

// ServiceRequestPayload represents a service request submission
// @Description Service request structure
type ServiceRequestPayload struct {
	Category    string `json:"category" validate:"required" example:"infrastructure"`      // Department category
	Subject     string `json:"subject" validate:"required,min=3" example:"Broken lantern"` // Short subject
	Description string `json:"description" validate:"required" example:"The lantern on the east bridge is out"` // Details
}

// StatusPayload represents a request status update
// @Description Status update structure
type StatusPayload struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved" example:"resolved"` // New status
}

// DeclarationPayload represents an office declaration submission
// @Description Office declaration structure
type DeclarationPayload struct {
	Office    string `json:"office" validate:"required" example:"Minister of Posts"` // Office declared
	Statement string `json:"statement" validate:"required,min=10" example:"I hereby declare my candidacy for Minister of Posts."` // Declaration text
}

func NewRequestsService(db *sql.DB) *RequestsService {
	return &RequestsService{
		db:        db,
		validator: validator.New(),
	}
}

// CreateRequest files a service request for the caller
// @Summary File service request
// @Description Submit a service request to a government department
// @Tags requests
// @Accept json
// @Produce json
// @Param request body ServiceRequestPayload true "Service request"
// @Success 201 {object} models.ServiceRequest "Created request"
// @Failure 400 {string} string "Invalid request"
// @Router /requests [post]
func (s *RequestsService) CreateRequest(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req ServiceRequestPayload
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var sr models.ServiceRequest
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO service_requests (user_email, category, subject, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'open', NOW(), NOW())
		RETURNING id, user_email, category, subject, description, status, created_at, updated_at
	`, email, req.Category, req.Subject, req.Description).Scan(
		&sr.ID, &sr.UserEmail, &sr.Category, &sr.Subject, &sr.Description,
		&sr.Status, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		log.Printf("[REQUESTS] Creation failed for %s: %v", email, err)
		SendErrorResponse(w, "Failed to file service request", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, sr)
}

// ListMyRequests returns the caller's service requests
// @Summary List my service requests
// @Description List the authenticated citizen's service requests
// @Tags requests
// @Produce json
// @Success 200 {array} models.ServiceRequest "Requests"
// @Failure 500 {string} string "Internal server error"
// @Router /requests [get]
func (s *RequestsService) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s.listRequests(w, r, "WHERE user_email = $1", email)
}

// ListAllRequests returns every service request
// @Summary List all service requests
// @Description List every citizen service request (admin only)
// @Tags requests
// @Produce json
// @Success 200 {array} models.ServiceRequest "Requests"
// @Failure 500 {string} string "Internal server error"
// @Router /admin/requests [get]
func (s *RequestsService) ListAllRequests(w http.ResponseWriter, r *http.Request) {
	s.listRequests(w, r, "")
}

func (s *RequestsService) listRequests(w http.ResponseWriter, r *http.Request, where string, args ...any) {
	query := `
		SELECT id, user_email, category, subject, description, status, created_at, updated_at
		FROM service_requests ` + where + `
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[REQUESTS] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to list service requests", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	requests := []models.ServiceRequest{}
	for rows.Next() {
		var sr models.ServiceRequest
		if err := rows.Scan(&sr.ID, &sr.UserEmail, &sr.Category, &sr.Subject,
			&sr.Description, &sr.Status, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			log.Printf("[REQUESTS] Scan failed: %v", err)
			SendErrorResponse(w, "Failed to list service requests", http.StatusInternalServerError, nil)
			return
		}
		requests = append(requests, sr)
	}

	WriteJSON(w, http.StatusOK, requests)
}

// UpdateRequestStatus moves a request through its workflow
// @Summary Update request status
// @Description Set a service request's status (admin only)
// @Tags requests
// @Accept json
// @Produce json
// @Param requestID path int true "Request id"
// @Param request body StatusPayload true "New status"
// @Success 200 {object} map[string]string "Updated"
// @Failure 404 {string} string "Request not found"
// @Router /admin/requests/{requestID}/status [put]
func (s *RequestsService) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid request id", http.StatusBadRequest, nil)
		return
	}

	var req StatusPayload
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE service_requests SET status = $1, updated_at = NOW() WHERE id = $2
	`, req.Status, requestID)
	if err != nil {
		log.Printf("[REQUESTS] Status update failed for %d: %v", requestID, err)
		SendErrorResponse(w, "Failed to update service request", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Request not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Request updated"})
}

// CreateDeclaration records an office declaration for the caller
// @Summary Declare office
// @Description Record a declaration of candidacy or office
// @Tags requests
// @Accept json
// @Produce json
// @Param request body DeclarationPayload true "Declaration"
// @Success 201 {object} models.OfficeDeclaration "Created declaration"
// @Failure 400 {string} string "Invalid request"
// @Router /declarations [post]
func (s *RequestsService) CreateDeclaration(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DeclarationPayload
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var d models.OfficeDeclaration
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO office_declarations (user_email, office, statement, declared_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, user_email, office, statement, declared_at
	`, email, req.Office, req.Statement).Scan(
		&d.ID, &d.UserEmail, &d.Office, &d.Statement, &d.DeclaredAt)
	if err != nil {
		log.Printf("[REQUESTS] Declaration failed for %s: %v", email, err)
		SendErrorResponse(w, "Failed to record declaration", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, d)
}

// ListDeclarations returns the public register of declarations
// @Summary List declarations
// @Description List the public register of office declarations
// @Tags requests
// @Produce json
// @Success 200 {array} models.OfficeDeclaration "Declarations"
// @Failure 500 {string} string "Internal server error"
// @Router /declarations [get]
func (s *RequestsService) ListDeclarations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_email, office, statement, declared_at
		FROM office_declarations
		ORDER BY declared_at DESC
	`)
	if err != nil {
		log.Printf("[REQUESTS] Declaration listing failed: %v", err)
		SendErrorResponse(w, "Failed to list declarations", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	declarations := []models.OfficeDeclaration{}
	for rows.Next() {
		var d models.OfficeDeclaration
		if err := rows.Scan(&d.ID, &d.UserEmail, &d.Office, &d.Statement, &d.DeclaredAt); err != nil {
			log.Printf("[REQUESTS] Declaration scan failed: %v", err)
			SendErrorResponse(w, "Failed to list declarations", http.StatusInternalServerError, nil)
			return
		}
		declarations = append(declarations, d)
	}

	WriteJSON(w, http.StatusOK, declarations)
}
