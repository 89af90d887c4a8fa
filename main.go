package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authgate/authgate-be/internal/api"
	"github.com/authgate/authgate-be/internal/auth"
	"github.com/authgate/authgate-be/internal/config"
	"github.com/authgate/authgate-be/internal/database"
	"github.com/authgate/authgate-be/internal/logger"
	"github.com/authgate/authgate-be/internal/services"
	"github.com/rs/zerolog/log"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up services
	userService := services.NewUserService(db)

	// Optional dev seeding, only when explicitly enabled
	if cfg.SeedDevUser {
		if _, err := userService.EnsureUser("user", "user@email.com", "password"); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed dev user")
		}
		log.Info().Msg("Seeded dev user user@email.com")
	}

	// Set up token issuer; an empty secret aborts startup here
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}

	// Set up router
	router := api.NewRouter(userService, issuer)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
