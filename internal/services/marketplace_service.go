package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vandehoeken/portal/internal/ledger"
	"github.com/vandehoeken/portal/internal/models"
)

// MarketplaceService serves the government marketplace: browsing is public,
// purchases go through the ledger so the debit and stock decrement commit
// together.
type MarketplaceService struct {
	db        *sql.DB
	ledger    *ledger.Service
	validator *validator.Validate
}

// ItemRequest represents a marketplace item create/update payload
// @Description Marketplace item request structure
type ItemRequest struct {
	Name        string `json:"name" validate:"required,min=2" example:"Honey Jar"` // Item name
	Description string `json:"description" example:"Local wildflower honey"`      // Item description
	Price       int64  `json:"price" validate:"required,gt=0" example:"25"`       // Price in whole VHS
	Stock       int    `json:"stock" validate:"gte=0" example:"10"`               // Units available
	Category    string `json:"category" validate:"required" example:"goods"`      // goods or services
	ImageURL    string `json:"image_url" example:"/static/items/honey.jpg"`       // Listing image
}

func NewMarketplaceService(db *sql.DB, ledgerService *ledger.Service) *MarketplaceService {
	return &MarketplaceService{
		db:        db,
		ledger:    ledgerService,
		validator: validator.New(),
	}
}

// ListItems returns marketplace items
// @Summary List marketplace items
// @Description List marketplace items, optionally filtered by search term or category
// @Tags marketplace
// @Produce json
// @Param q query string false "Search term"
// @Param category query string false "Category filter"
// @Success 200 {array} models.MarketplaceItem "Items"
// @Failure 500 {string} string "Internal server error"
// @Router /marketplace/items [get]
func (s *MarketplaceService) ListItems(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, name, description, price, stock, category, image_url, created_at
		FROM marketplace_items
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(r.Context(), query,
		r.URL.Query().Get("q"), r.URL.Query().Get("category"))
	if err != nil {
		log.Printf("[MARKET] Item listing failed: %v", err)
		SendErrorResponse(w, "Failed to list items", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	items := []models.MarketplaceItem{}
	for rows.Next() {
		var item models.MarketplaceItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Price,
			&item.Stock, &item.Category, &item.ImageURL, &item.CreatedAt); err != nil {
			log.Printf("[MARKET] Item scan failed: %v", err)
			SendErrorResponse(w, "Failed to list items", http.StatusInternalServerError, nil)
			return
		}
		items = append(items, item)
	}

	WriteJSON(w, http.StatusOK, items)
}

// Purchase buys one unit of an item for the caller
// @Summary Purchase item
// @Description Buy one unit of a marketplace item, debiting the citizen's treasury account
// @Tags marketplace
// @Produce json
// @Param itemID path int true "Item id"
// @Success 200 {object} map[string]any "Purchase completed"
// @Failure 400 {string} string "Insufficient funds"
// @Failure 404 {string} string "Item not found"
// @Failure 409 {string} string "Out of stock"
// @Failure 500 {string} string "Internal server error"
// @Router /marketplace/items/{itemID}/purchase [post]
func (s *MarketplaceService) Purchase(w http.ResponseWriter, r *http.Request) {
	email, ok := r.Context().Value("userEmail").(string)
	if !ok || email == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid item id", http.StatusBadRequest, nil)
		return
	}

	txn, err := s.ledger.Purchase(r.Context(), email, itemID)
	if err != nil {
		log.Printf("[MARKET] Purchase failed for %s, item %d: %v", email, itemID, err)
		SendLedgerError(w, "purchase", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"message":     "Purchase completed",
		"transaction": txn,
	})
}

// CreateItem adds a marketplace item
// @Summary Create marketplace item
// @Description Add a new marketplace item (admin only)
// @Tags marketplace
// @Accept json
// @Produce json
// @Param request body ItemRequest true "Item"
// @Success 201 {object} models.MarketplaceItem "Created item"
// @Failure 400 {string} string "Invalid request"
// @Failure 403 {string} string "Administrator access required"
// @Router /admin/marketplace/items [post]
func (s *MarketplaceService) CreateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeItem(w, r)
	if !ok {
		return
	}

	var item models.MarketplaceItem
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO marketplace_items (name, description, price, stock, category, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, name, description, price, stock, category, image_url, created_at
	`, req.Name, req.Description, req.Price, req.Stock, req.Category, req.ImageURL).Scan(
		&item.ID, &item.Name, &item.Description, &item.Price, &item.Stock,
		&item.Category, &item.ImageURL, &item.CreatedAt)
	if err != nil {
		log.Printf("[MARKET] Item creation failed: %v", err)
		SendErrorResponse(w, "Failed to create item", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, item)
}

// UpdateItem updates a marketplace item
// @Summary Update marketplace item
// @Description Update an existing marketplace item (admin only)
// @Tags marketplace
// @Accept json
// @Produce json
// @Param itemID path int true "Item id"
// @Param request body ItemRequest true "Item"
// @Success 200 {object} map[string]string "Updated"
// @Failure 404 {string} string "Item not found"
// @Router /admin/marketplace/items/{itemID} [put]
func (s *MarketplaceService) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid item id", http.StatusBadRequest, nil)
		return
	}

	req, ok := s.decodeItem(w, r)
	if !ok {
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE marketplace_items
		SET name = $1, description = $2, price = $3, stock = $4, category = $5, image_url = $6
		WHERE id = $7
	`, req.Name, req.Description, req.Price, req.Stock, req.Category, req.ImageURL, itemID)
	if err != nil {
		log.Printf("[MARKET] Item update failed for %d: %v", itemID, err)
		SendErrorResponse(w, "Failed to update item", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Item updated"})
}

// DeleteItem removes a marketplace item
// @Summary Delete marketplace item
// @Description Remove a marketplace item (admin only)
// @Tags marketplace
// @Produce json
// @Param itemID path int true "Item id"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Item not found"
// @Router /admin/marketplace/items/{itemID} [delete]
func (s *MarketplaceService) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid item id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), "DELETE FROM marketplace_items WHERE id = $1", itemID)
	if err != nil {
		log.Printf("[MARKET] Item deletion failed for %d: %v", itemID, err)
		SendErrorResponse(w, "Failed to delete item", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Item deleted"})
}

func (s *MarketplaceService) decodeItem(w http.ResponseWriter, r *http.Request) (ItemRequest, bool) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ItemRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return req, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return req, false
	}
	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return req, false
	}
	return req, true
}
