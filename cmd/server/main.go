package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vandehoeken/portal/docs"
	"github.com/vandehoeken/portal/internal/database"
	"github.com/vandehoeken/portal/internal/ledger"
	mW "github.com/vandehoeken/portal/internal/middleware"
	"github.com/vandehoeken/portal/internal/notify"
	"github.com/vandehoeken/portal/internal/services"
)

// @title Vandehoeken Citizen Portal API
// @version 1.0
// @description API for the Vandehoeken citizen portal and treasury
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Vandehoeken Citizen Portal API"
	docs.SwaggerInfo.Description = "API for the Vandehoeken citizen portal and treasury"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink := notify.NewSink(redisClient)
	ledgerService := ledger.NewService(db, sink)

	authService := services.NewAuthService(db, redisClient)
	treasuryService := services.NewTreasuryService(db, redisClient, ledgerService)
	marketplaceService := services.NewMarketplaceService(db, ledgerService)
	listingsService := services.NewListingsService(db)
	payrollService := services.NewPayrollService(db, ledgerService, sink)
	requestsService := services.NewRequestsService(db)
	settlementService := services.NewSettlementService(ledgerService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for listing images
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer("./static")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		r.Get("/marketplace/items", marketplaceService.ListItems)
		r.Get("/listings/houses", listingsService.ListHouses)
		r.Get("/listings/cars", listingsService.ListCars)
		r.Get("/listings/flights", listingsService.ListFlights)
		r.Get("/listings/rails", listingsService.ListRails)
		r.Get("/jobs", payrollService.ListJobs)
		r.Get("/declarations", requestsService.ListDeclarations)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", authService.GetProfile)

			r.Get("/treasury/account", treasuryService.GetMyAccount)
			r.Get("/treasury/passport", treasuryService.GetPassport)
			r.Post("/treasury/transfer", treasuryService.Transfer)
			r.Get("/treasury/transactions", treasuryService.ListTransactions)
			r.Get("/treasury/accounts/{vntID}", treasuryService.AccountEnquiry)

			r.Post("/marketplace/items/{itemID}/purchase", marketplaceService.Purchase)

			r.Post("/requests", requestsService.CreateRequest)
			r.Get("/requests", requestsService.ListMyRequests)
			r.Post("/declarations", requestsService.CreateDeclaration)

			// Government console (admin role required)
			r.Group(func(r chi.Router) {
				r.Use(mW.AdminOnly)

				r.Post("/admin/marketplace/items", marketplaceService.CreateItem)
				r.Put("/admin/marketplace/items/{itemID}", marketplaceService.UpdateItem)
				r.Delete("/admin/marketplace/items/{itemID}", marketplaceService.DeleteItem)

				r.Post("/admin/listings/houses", listingsService.CreateHouse)
				r.Post("/admin/listings/houses/{houseID}/sold", listingsService.MarkHouseSold)
				r.Delete("/admin/listings/houses/{houseID}", listingsService.DeleteHouse)
				r.Post("/admin/listings/cars", listingsService.CreateCar)
				r.Delete("/admin/listings/cars/{carID}", listingsService.DeleteCar)
				r.Post("/admin/listings/flights", listingsService.CreateFlight)
				r.Delete("/admin/listings/flights/{flightID}", listingsService.DeleteFlight)
				r.Post("/admin/listings/rails", listingsService.CreateRail)
				r.Delete("/admin/listings/rails/{railID}", listingsService.DeleteRail)

				r.Post("/admin/jobs", payrollService.CreateJob)
				r.Get("/admin/assignments", payrollService.ListAssignments)
				r.Post("/admin/assignments", payrollService.AssignJob)
				r.Put("/admin/assignments/{assignmentID}/salary", payrollService.UpdateSalary)
				r.Post("/admin/assignments/{assignmentID}/terminate", payrollService.Terminate)
				r.Post("/admin/payroll/run", payrollService.RunPayroll)

				r.Get("/admin/requests", requestsService.ListAllRequests)
				r.Put("/admin/requests/{requestID}/status", requestsService.UpdateRequestStatus)

				r.Get("/admin/transactions", settlementService.ListAllTransactions)
				r.Post("/admin/adjust", settlementService.Adjust)
				r.Get("/admin/settlement/{transactionID}", settlementService.ExportSettlement)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
