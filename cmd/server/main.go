package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/schoolbill/fee-engine/internal/config"
	"github.com/schoolbill/fee-engine/internal/handler"
	"github.com/schoolbill/fee-engine/internal/repository"
	"github.com/schoolbill/fee-engine/internal/service"
	"github.com/schoolbill/fee-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	structRepo := repository.NewFeeStructureRepository(db)
	assignRepo := repository.NewAssignmentRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)

	// Initialize services
	feeService := service.NewFeeService(structRepo, assignRepo)
	billingService := service.NewBillingService(journalRepo, assignRepo, structRepo, redisClient, cfg)
	paymentService := service.NewPaymentService(paymentRepo, refundRepo, billingService, cfg)

	feeHandler := handler.NewFeeHandler(feeService)
	billingHandler := handler.NewBillingHandler(billingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Health.Timeout)

	// Setup routes
	router := setupRoutes(feeHandler, billingHandler, paymentHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(
	feeHandler *handler.FeeHandler,
	billingHandler *handler.BillingHandler,
	paymentHandler *handler.PaymentHandler,
	healthHandler *handler.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/fee-structures", feeHandler.CreateStructure).Methods("POST")
	api.HandleFunc("/fee-structures", feeHandler.ListStructures).Methods("GET")
	api.HandleFunc("/fee-structures/{id}", feeHandler.GetStructure).Methods("GET")
	api.HandleFunc("/fee-structures/{id}", feeHandler.UpdateStructure).Methods("PUT")
	api.HandleFunc("/fee-structures/{id}", feeHandler.DeleteStructure).Methods("DELETE")
	api.HandleFunc("/fee-structures/{id}/deactivate", feeHandler.DeactivateStructure).Methods("POST")

	api.HandleFunc("/assignments", feeHandler.CreateAssignment).Methods("POST")
	api.HandleFunc("/assignments/{id}", feeHandler.GetAssignment).Methods("GET")
	api.HandleFunc("/students/{studentId}/assignments", feeHandler.ListStudentAssignments).Methods("GET")

	api.HandleFunc("/journal-entries/materialize", billingHandler.Materialize).Methods("POST")
	api.HandleFunc("/journal-entries/{id}/waive", billingHandler.WaiveEntry).Methods("POST")
	api.HandleFunc("/students/{studentId}/journal-entries", billingHandler.ListStudentEntries).Methods("GET")
	api.HandleFunc("/students/{studentId}/fee-summary", billingHandler.GetStudentSummary).Methods("GET")

	api.HandleFunc("/payments", paymentHandler.ApplyPayment).Methods("POST")
	api.HandleFunc("/payments/{id}", paymentHandler.GetPayment).Methods("GET")
	api.HandleFunc("/payments/{id}/receipt", paymentHandler.GetReceipt).Methods("GET")
	api.HandleFunc("/payments/{id}/refund", paymentHandler.RequestRefund).Methods("POST")
	api.HandleFunc("/payments/{id}/refunds", paymentHandler.ListPaymentRefunds).Methods("GET")
	api.HandleFunc("/students/{studentId}/payments", paymentHandler.ListStudentPayments).Methods("GET")

	api.HandleFunc("/refunds/{id}", paymentHandler.GetRefund).Methods("GET")
	api.HandleFunc("/refunds/{id}/approve", paymentHandler.ApproveRefund).Methods("POST")
	api.HandleFunc("/refunds/{id}/reject", paymentHandler.RejectRefund).Methods("POST")
	api.HandleFunc("/refunds/{id}/complete", paymentHandler.CompleteRefund).Methods("POST")

	return router
}
