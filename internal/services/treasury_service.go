package services

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/vandehoeken/portal/internal/ledger"
)

// TreasuryService exposes citizen-facing treasury operations: account
// access, transfers and transaction history.
type TreasuryService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *ledger.Service
	validator *validator.Validate
}

// TransferRequest represents a citizen-to-citizen transfer payload
// @Description Transfer request structure
type TransferRequest struct {
	ToVNTID     string `json:"to_vnt_id" validate:"required" example:"VNT-1735689600123-X7K2M9QRT"` // Recipient treasury account id
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"40"`                        // Amount in whole VHS
	Description string `json:"description" example:"Rent"`                                          // Optional note
}

// AccountResponse represents a treasury account
// @Description Treasury account structure
type AccountResponse struct {
	VNTID     string    `json:"vnt_id" example:"VNT-1735689600123-X7K2M9QRT"` // Treasury account id
	UserEmail string    `json:"user_email" example:"citizen@vandehoeken.gov"` // Owning citizen
	Balance   int64     `json:"balance" example:"100"`                        // Balance in whole VHS
	CreatedAt time.Time `json:"created_at"`                                   // Account opening time
}

func NewTreasuryService(db *sql.DB, redisClient *redis.Client, ledgerService *ledger.Service) *TreasuryService {
	return &TreasuryService{
		db:        db,
		redis:     redisClient,
		ledger:    ledgerService,
		validator: validator.New(),
	}
}

// GetMyAccount returns the caller's treasury account, opening it on first access
// @Summary Get treasury account
// @Description Get the authenticated citizen's treasury account, creating it on first access
// @Tags treasury
// @Produce json
// @Success 200 {object} AccountResponse "Treasury account"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /treasury/account [get]
func (s *TreasuryService) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.ledger.Accounts().GetOrCreate(r.Context(), email)
	if err != nil {
		log.Printf("[TREASURY] Account lookup failed for %s: %v", email, err)
		SendLedgerError(w, "account lookup", err)
		return
	}

	WriteJSON(w, http.StatusOK, AccountResponse{
		VNTID:     account.VNTID,
		UserEmail: account.UserEmail,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt,
	})
}

// GetPassport returns the citizen's digital passport QR code
// @Summary Get passport QR
// @Description Get a QR code encoding the citizen's treasury identity
// @Tags treasury
// @Produce json
// @Success 200 {object} map[string]string "Passport QR"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /treasury/passport [get]
func (s *TreasuryService) GetPassport(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.ledger.Accounts().GetOrCreate(r.Context(), email)
	if err != nil {
		SendLedgerError(w, "account lookup", err)
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"vnt_id":    account.VNTID,
		"issued_at": time.Now().UTC().Format(time.RFC3339),
	})

	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		log.Printf("[TREASURY] QR generation failed for %s: %v", account.VNTID, err)
		SendErrorResponse(w, "Failed to generate passport", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"vnt_id":   account.VNTID,
		"qr_image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// Transfer moves VHS from the caller to another treasury account
// @Summary Transfer VHS
// @Description Transfer VHS from the authenticated citizen to another account
// @Tags treasury
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} map[string]any "Transfer completed"
// @Failure 400 {string} string "Invalid request"
// @Failure 404 {string} string "Recipient not found"
// @Failure 429 {string} string "Too many transfers"
// @Failure 500 {string} string "Internal server error"
// @Router /treasury/transfer [post]
func (s *TreasuryService) Transfer(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TransferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !s.allowTransfer(r, email) {
		SendErrorResponse(w, "Transfer limit reached, try again later", http.StatusTooManyRequests, nil)
		return
	}

	txn, err := s.ledger.Transfer(r.Context(), email, req.ToVNTID, req.Amount, req.Description)
	if err != nil {
		log.Printf("[TREASURY] Transfer failed for %s: %v", email, err)
		SendLedgerError(w, "transfer", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":     "Transfer completed",
		"transaction": txn,
	})
}

// allowTransfer enforces a per-citizen sliding window on transfer attempts.
// Fails open when Redis is down.
func (s *TreasuryService) allowTransfer(r *http.Request, email string) bool {
	if s.redis == nil {
		return true
	}

	cfg := s.ledger.Config()
	key := fmt.Sprintf("rate:transfer:%s", email)
	count, err := s.redis.Incr(r.Context(), key).Result()
	if err != nil {
		log.Printf("[TREASURY] Rate limit check failed: %v", err)
		return true
	}
	if count == 1 {
		s.redis.Expire(r.Context(), key, cfg.RateLimitWindow)
	}
	return count <= int64(cfg.TransferRateLimit)
}

// ListTransactions returns the caller's transaction history
// @Summary List transactions
// @Description List the authenticated citizen's transactions, newest first
// @Tags treasury
// @Produce json
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {array} models.Transaction "Transactions"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Internal server error"
// @Router /treasury/transactions [get]
func (s *TreasuryService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.ledger.Accounts().GetOrCreate(r.Context(), email)
	if err != nil {
		SendLedgerError(w, "account lookup", err)
		return
	}

	limit := s.ledger.Config().HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	txns, err := s.ledger.Log().ListForAccount(r.Context(), account.VNTID, limit)
	if err != nil {
		log.Printf("[TREASURY] History lookup failed for %s: %v", account.VNTID, err)
		SendLedgerError(w, "transaction history", err)
		return
	}

	WriteJSON(w, http.StatusOK, txns)
}

// AccountEnquiry resolves a treasury id to the holder's name
// @Summary Account enquiry
// @Description Resolve a treasury account id to the holder's registered name
// @Tags treasury
// @Produce json
// @Param vntID path string true "Treasury account id"
// @Success 200 {object} map[string]string "Account holder"
// @Failure 404 {string} string "Account not found"
// @Router /treasury/accounts/{vntID} [get]
func (s *TreasuryService) AccountEnquiry(w http.ResponseWriter, r *http.Request) {
	vntID := chi.URLParam(r, "vntID")

	account, err := s.ledger.Accounts().FindByVNTID(r.Context(), vntID)
	if err != nil {
		SendLedgerError(w, "account enquiry", err)
		return
	}

	var fullName string
	err = s.db.QueryRow("SELECT full_name FROM users WHERE email = $1", account.UserEmail).Scan(&fullName)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("[TREASURY] Holder lookup failed for %s: %v", vntID, err)
		SendErrorResponse(w, "Failed to process account enquiry", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"vnt_id":      account.VNTID,
		"holder_name": fullName,
	})
}
