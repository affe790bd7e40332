package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storefront-auth/internal/config"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/infrastructure/dynamo"
	"github.com/storefront-auth/internal/infrastructure/smtp"
	transporthttp "github.com/storefront-auth/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	baseURL, err := url.Parse(cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("invalid PUBLIC_BASE_URL: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	mailer := smtp.NewMailer(cfg)

	var blockKey []byte
	if cfg.CookieBlockKey != "" {
		blockKey = []byte(cfg.CookieBlockKey)
	}
	cookies := cookie.NewStores([]byte(cfg.CookieHashKey), blockKey, cfg.CookieSecure)

	deps := &transporthttp.Deps{
		Users:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		Sessions:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		Verifications: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		Mailer:        mailer,
		Cookies:       cookies,
		BaseURL:       baseURL,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
