package services

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vandehoeken/portal/internal/models"
)

// ListingsService serves national listing boards: housing, vehicles,
// flights and rail connections. Boards are browse-only for citizens and
// maintained from the government console.
type ListingsService struct {
	db        *sql.DB
	validator *validator.Validate
}

// HouseRequest represents a property listing payload
// @Description Property listing request structure
type HouseRequest struct {
	Title       string `json:"title" validate:"required,min=2" example:"Canal Cottage"` // Listing title
	Description string `json:"description" example:"Two bedrooms on the east canal"`    // Listing description
	Price       int64  `json:"price" validate:"required,gt=0" example:"2500"`           // Price in whole VHS
	District    string `json:"district" validate:"required" example:"East Canal"`       // District
	Bedrooms    int    `json:"bedrooms" validate:"gte=0" example:"2"`                   // Bedroom count
	ImageURL    string `json:"image_url" example:"/static/houses/canal.jpg"`            // Listing image
}

// CarRequest represents a vehicle listing payload
// @Description Vehicle listing request structure
type CarRequest struct {
	Make     string `json:"make" validate:"required" example:"Volvo"`    // Manufacturer
	Model    string `json:"model" validate:"required" example:"240"`     // Model
	Year     int    `json:"year" validate:"required,gte=1900" example:"1988"` // Model year
	Price    int64  `json:"price" validate:"required,gt=0" example:"800"`     // Price in whole VHS
	ImageURL string `json:"image_url" example:"/static/cars/volvo.jpg"`       // Listing image
}

// ScheduleRequest represents a flight or rail schedule payload
// @Description Schedule request structure
type ScheduleRequest struct {
	Code        string    `json:"code" validate:"required" example:"VH101"`          // Flight number or rail line
	Origin      string    `json:"origin" validate:"required" example:"Vandehoeken"`  // Origin
	Destination string    `json:"destination" validate:"required" example:"Utrecht"` // Destination
	Departure   time.Time `json:"departure" validate:"required"`                     // Departure time
	Price       int64     `json:"price" validate:"required,gt=0" example:"120"`      // Fare in whole VHS
	Seats       int       `json:"seats" validate:"gte=0" example:"40"`               // Seats available
}

func NewListingsService(db *sql.DB) *ListingsService {
	return &ListingsService{
		db:        db,
		validator: validator.New(),
	}
}

// ListHouses returns available property listings
// @Summary List houses
// @Description List available property listings
// @Tags listings
// @Produce json
// @Success 200 {array} models.House "Houses"
// @Failure 500 {string} string "Internal server error"
// @Router /listings/houses [get]
func (s *ListingsService) ListHouses(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, title, description, price, district, bedrooms, status, image_url, created_at
		FROM houses
		WHERE status = 'available'
		ORDER BY created_at DESC
	`)
	if err != nil {
		log.Printf("[LISTINGS] House listing failed: %v", err)
		SendErrorResponse(w, "Failed to list houses", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	houses := []models.House{}
	for rows.Next() {
		var h models.House
		if err := rows.Scan(&h.ID, &h.Title, &h.Description, &h.Price, &h.District,
			&h.Bedrooms, &h.Status, &h.ImageURL, &h.CreatedAt); err != nil {
			log.Printf("[LISTINGS] House scan failed: %v", err)
			SendErrorResponse(w, "Failed to list houses", http.StatusInternalServerError, nil)
			return
		}
		houses = append(houses, h)
	}

	WriteJSON(w, http.StatusOK, houses)
}

// CreateHouse adds a property listing
// @Summary Create house listing
// @Description Add a property listing (admin only)
// @Tags listings
// @Accept json
// @Produce json
// @Param request body HouseRequest true "Property listing"
// @Success 201 {object} models.House "Created listing"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/listings/houses [post]
func (s *ListingsService) CreateHouse(w http.ResponseWriter, r *http.Request) {
	var req HouseRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var h models.House
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO houses (title, description, price, district, bedrooms, status, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, 'available', $6, NOW())
		RETURNING id, title, description, price, district, bedrooms, status, image_url, created_at
	`, req.Title, req.Description, req.Price, req.District, req.Bedrooms, req.ImageURL).Scan(
		&h.ID, &h.Title, &h.Description, &h.Price, &h.District, &h.Bedrooms,
		&h.Status, &h.ImageURL, &h.CreatedAt)
	if err != nil {
		log.Printf("[LISTINGS] House creation failed: %v", err)
		SendErrorResponse(w, "Failed to create house listing", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, h)
}

// MarkHouseSold flips a property listing to sold
// @Summary Mark house sold
// @Description Mark a property listing as sold (admin only)
// @Tags listings
// @Produce json
// @Param houseID path int true "House id"
// @Success 200 {object} map[string]string "Updated"
// @Failure 404 {string} string "Listing not found"
// @Router /admin/listings/houses/{houseID}/sold [post]
func (s *ListingsService) MarkHouseSold(w http.ResponseWriter, r *http.Request) {
	s.markSold(w, r, "houses", chi.URLParam(r, "houseID"))
}

// DeleteHouse removes a property listing
// @Summary Delete house listing
// @Description Remove a property listing (admin only)
// @Tags listings
// @Produce json
// @Param houseID path int true "House id"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Listing not found"
// @Router /admin/listings/houses/{houseID} [delete]
func (s *ListingsService) DeleteHouse(w http.ResponseWriter, r *http.Request) {
	s.deleteListing(w, r, "houses", chi.URLParam(r, "houseID"))
}

// ListCars returns available vehicle listings
// @Summary List cars
// @Description List available vehicle listings
// @Tags listings
// @Produce json
// @Success 200 {array} models.Car "Cars"
// @Failure 500 {string} string "Internal server error"
// @Router /listings/cars [get]
func (s *ListingsService) ListCars(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, make, model, year, price, status, image_url, created_at
		FROM cars
		WHERE status = 'available'
		ORDER BY created_at DESC
	`)
	if err != nil {
		log.Printf("[LISTINGS] Car listing failed: %v", err)
		SendErrorResponse(w, "Failed to list cars", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	cars := []models.Car{}
	for rows.Next() {
		var c models.Car
		if err := rows.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.Price,
			&c.Status, &c.ImageURL, &c.CreatedAt); err != nil {
			log.Printf("[LISTINGS] Car scan failed: %v", err)
			SendErrorResponse(w, "Failed to list cars", http.StatusInternalServerError, nil)
			return
		}
		cars = append(cars, c)
	}

	WriteJSON(w, http.StatusOK, cars)
}

// CreateCar adds a vehicle listing
// @Summary Create car listing
// @Description Add a vehicle listing (admin only)
// @Tags listings
// @Accept json
// @Produce json
// @Param request body CarRequest true "Vehicle listing"
// @Success 201 {object} models.Car "Created listing"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/listings/cars [post]
func (s *ListingsService) CreateCar(w http.ResponseWriter, r *http.Request) {
	var req CarRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var c models.Car
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO cars (make, model, year, price, status, image_url, created_at)
		VALUES ($1, $2, $3, $4, 'available', $5, NOW())
		RETURNING id, make, model, year, price, status, image_url, created_at
	`, req.Make, req.Model, req.Year, req.Price, req.ImageURL).Scan(
		&c.ID, &c.Make, &c.Model, &c.Year, &c.Price, &c.Status, &c.ImageURL, &c.CreatedAt)
	if err != nil {
		log.Printf("[LISTINGS] Car creation failed: %v", err)
		SendErrorResponse(w, "Failed to create car listing", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, c)
}

// DeleteCar removes a vehicle listing
// @Summary Delete car listing
// @Description Remove a vehicle listing (admin only)
// @Tags listings
// @Produce json
// @Param carID path int true "Car id"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Listing not found"
// @Router /admin/listings/cars/{carID} [delete]
func (s *ListingsService) DeleteCar(w http.ResponseWriter, r *http.Request) {
	s.deleteListing(w, r, "cars", chi.URLParam(r, "carID"))
}

// ListFlights returns scheduled flights
// @Summary List flights
// @Description List scheduled flights
// @Tags listings
// @Produce json
// @Success 200 {array} models.Flight "Flights"
// @Failure 500 {string} string "Internal server error"
// @Router /listings/flights [get]
func (s *ListingsService) ListFlights(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, flight_no, origin, destination, departure, price, seats, created_at
		FROM flights
		ORDER BY departure ASC
	`)
	if err != nil {
		log.Printf("[LISTINGS] Flight listing failed: %v", err)
		SendErrorResponse(w, "Failed to list flights", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	flights := []models.Flight{}
	for rows.Next() {
		var f models.Flight
		if err := rows.Scan(&f.ID, &f.FlightNo, &f.Origin, &f.Destination,
			&f.Departure, &f.Price, &f.Seats, &f.CreatedAt); err != nil {
			log.Printf("[LISTINGS] Flight scan failed: %v", err)
			SendErrorResponse(w, "Failed to list flights", http.StatusInternalServerError, nil)
			return
		}
		flights = append(flights, f)
	}

	WriteJSON(w, http.StatusOK, flights)
}

// CreateFlight schedules a flight
// @Summary Create flight
// @Description Schedule a flight (admin only)
// @Tags listings
// @Accept json
// @Produce json
// @Param request body ScheduleRequest true "Flight schedule"
// @Success 201 {object} models.Flight "Created flight"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/listings/flights [post]
func (s *ListingsService) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var f models.Flight
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO flights (flight_no, origin, destination, departure, price, seats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, flight_no, origin, destination, departure, price, seats, created_at
	`, req.Code, req.Origin, req.Destination, req.Departure, req.Price, req.Seats).Scan(
		&f.ID, &f.FlightNo, &f.Origin, &f.Destination, &f.Departure, &f.Price, &f.Seats, &f.CreatedAt)
	if err != nil {
		log.Printf("[LISTINGS] Flight creation failed: %v", err)
		SendErrorResponse(w, "Failed to create flight", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, f)
}

// DeleteFlight removes a scheduled flight
// @Summary Delete flight
// @Description Remove a scheduled flight (admin only)
// @Tags listings
// @Produce json
// @Param flightID path int true "Flight id"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Listing not found"
// @Router /admin/listings/flights/{flightID} [delete]
func (s *ListingsService) DeleteFlight(w http.ResponseWriter, r *http.Request) {
	s.deleteListing(w, r, "flights", chi.URLParam(r, "flightID"))
}

// ListRails returns rail connections
// @Summary List rail connections
// @Description List scheduled rail connections
// @Tags listings
// @Produce json
// @Success 200 {array} models.Rail "Rail connections"
// @Failure 500 {string} string "Internal server error"
// @Router /listings/rails [get]
func (s *ListingsService) ListRails(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, line, origin, destination, departure, price, seats, created_at
		FROM rails
		ORDER BY departure ASC
	`)
	if err != nil {
		log.Printf("[LISTINGS] Rail listing failed: %v", err)
		SendErrorResponse(w, "Failed to list rail connections", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	rails := []models.Rail{}
	for rows.Next() {
		var rl models.Rail
		if err := rows.Scan(&rl.ID, &rl.Line, &rl.Origin, &rl.Destination,
			&rl.Departure, &rl.Price, &rl.Seats, &rl.CreatedAt); err != nil {
			log.Printf("[LISTINGS] Rail scan failed: %v", err)
			SendErrorResponse(w, "Failed to list rail connections", http.StatusInternalServerError, nil)
			return
		}
		rails = append(rails, rl)
	}

	WriteJSON(w, http.StatusOK, rails)
}

// CreateRail schedules a rail connection
// @Summary Create rail connection
// @Description Schedule a rail connection (admin only)
// @Tags listings
// @Accept json
// @Produce json
// @Param request body ScheduleRequest true "Rail schedule"
// @Success 201 {object} models.Rail "Created rail connection"
// @Failure 400 {string} string "Invalid request"
// @Router /admin/listings/rails [post]
func (s *ListingsService) CreateRail(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeAndValidate(w, r, s.validator, &req) {
		return
	}

	var rl models.Rail
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO rails (line, origin, destination, departure, price, seats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, line, origin, destination, departure, price, seats, created_at
	`, req.Code, req.Origin, req.Destination, req.Departure, req.Price, req.Seats).Scan(
		&rl.ID, &rl.Line, &rl.Origin, &rl.Destination, &rl.Departure, &rl.Price, &rl.Seats, &rl.CreatedAt)
	if err != nil {
		log.Printf("[LISTINGS] Rail creation failed: %v", err)
		SendErrorResponse(w, "Failed to create rail connection", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusCreated, rl)
}

// DeleteRail removes a rail connection
// @Summary Delete rail connection
// @Description Remove a rail connection (admin only)
// @Tags listings
// @Produce json
// @Param railID path int true "Rail id"
// @Success 200 {object} map[string]string "Deleted"
// @Failure 404 {string} string "Listing not found"
// @Router /admin/listings/rails/{railID} [delete]
func (s *ListingsService) DeleteRail(w http.ResponseWriter, r *http.Request) {
	s.deleteListing(w, r, "rails", chi.URLParam(r, "railID"))
}

func (s *ListingsService) markSold(w http.ResponseWriter, r *http.Request, table, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid listing id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(),
		"UPDATE "+table+" SET status = 'sold' WHERE id = $1 AND status = 'available'", id)
	if err != nil {
		log.Printf("[LISTINGS] Status update failed for %s/%d: %v", table, id, err)
		SendErrorResponse(w, "Failed to update listing", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Listing not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Listing marked sold"})
}

func (s *ListingsService) deleteListing(w http.ResponseWriter, r *http.Request, table, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid listing id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		log.Printf("[LISTINGS] Deletion failed for %s/%d: %v", table, id, err)
		SendErrorResponse(w, "Failed to delete listing", http.StatusInternalServerError, nil)
		return
	}

	if n, _ := result.RowsAffected(); n == 0 {
		SendErrorResponse(w, "Listing not found", http.StatusNotFound, nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"message": "Listing deleted"})
}
