package models

import "time"

// MarketplaceItem is a purchasable good or service in the government
// marketplace. Stock is decremented atomically with the buyer's debit.
type MarketplaceItem struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"` // in VHS
	Stock       int       `json:"stock" db:"stock"`
	Category    string    `json:"category" db:"category"` // goods or services
	ImageURL    string    `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// House is a property listing.
type House struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"`
	District    string    `json:"district" db:"district"`
	Bedrooms    int       `json:"bedrooms" db:"bedrooms"`
	Status      string    `json:"status" db:"status"` // available or sold
	ImageURL    string    `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Car is a vehicle listing.
type Car struct {
	ID        int64     `json:"id" db:"id"`
	Make      string    `json:"make" db:"make"`
	Model     string    `json:"model" db:"model"`
	Year      int       `json:"year" db:"year"`
	Price     int64     `json:"price" db:"price"`
	Status    string    `json:"status" db:"status"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Flight is a scheduled flight listing.
type Flight struct {
	ID          int64     `json:"id" db:"id"`
	FlightNo    string    `json:"flight_no" db:"flight_no"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	Departure   time.Time `json:"departure" db:"departure"`
	Price       int64     `json:"price" db:"price"`
	Seats       int       `json:"seats" db:"seats"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Rail is a rail connection listing.
type Rail struct {
	ID          int64     `json:"id" db:"id"`
	Line        string    `json:"line" db:"line"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	Departure   time.Time `json:"departure" db:"departure"`
	Price       int64     `json:"price" db:"price"`
	Seats       int       `json:"seats" db:"seats"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
