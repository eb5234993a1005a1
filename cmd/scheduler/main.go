package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/schoolbill/fee-engine/internal/config"
	"github.com/schoolbill/fee-engine/internal/repository"
	"github.com/schoolbill/fee-engine/internal/service"
	"github.com/schoolbill/fee-engine/pkg/utils"
)

func main() {
	log.Println("Starting fee billing scheduler...")

	// Local runs keep secrets in .env; missing file is fine.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	structRepo := repository.NewFeeStructureRepository(db)
	assignRepo := repository.NewAssignmentRepository(db)
	journalRepo := repository.NewJournalRepository(db)

	billingService := service.NewBillingService(journalRepo, assignRepo, structRepo, redisClient, cfg)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone: %v", err)
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	// Schedule tasks
	setupCronJobs(c, cfg, billingService)

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, billing *service.BillingService) {
	// Monthly job to materialize journal entries for the new billing period
	_, err := c.AddFunc(cfg.Scheduler.MaterializeSpec, func() {
		feeMonth := utils.FeeMonthOf(time.Now())
		log.Printf("Materializing journal entries for %s...", feeMonth)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		created, err := billing.MaterializeMonth(ctx, feeMonth)
		if err != nil {
			log.Printf("Journal materialization failed: %v", err)
			return
		}
		log.Printf("Materialized %d journal entries for %s", created, feeMonth)
	})
	if err != nil {
		log.Printf("Error scheduling materialization job: %v", err)
	}

	// Daily job to mark overdue entries and record late fees
	_, err = c.AddFunc(cfg.Scheduler.OverdueSpec, func() {
		log.Println("Running overdue sweep...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		marked, err := billing.RunOverdueSweep(ctx)
		if err != nil {
			log.Printf("Overdue sweep failed: %v", err)
			return
		}
		log.Printf("Overdue sweep marked %d entries", marked)
	})
	if err != nil {
		log.Printf("Error scheduling overdue sweep job: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}
