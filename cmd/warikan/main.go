package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsubakiyo/warikan/internal/api"
	"github.com/tsubakiyo/warikan/internal/config"
	"github.com/tsubakiyo/warikan/internal/db"
	"github.com/tsubakiyo/warikan/internal/gateway"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if cfg.OpenAIAPIKey == "" {
		log.Println("OPENAI_API_KEY not set; receipt scans will return the mock result")
	}
	parser := gateway.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModelCandidates(), gateway.NewModelCache(), cfg.ReceiptDebug)

	// Initialize API server
	apiServer := api.New(cfg, database, parser, nil)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
}
