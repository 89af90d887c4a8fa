package api

import (
	"github.com/authgate/authgate-be/internal/api/handlers"
	"github.com/authgate/authgate-be/internal/auth"
	"github.com/authgate/authgate-be/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(userService services.UserServiceProvider, issuer *auth.Issuer) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, issuer)

	// Plain login endpoint for form-posting clients
	r.Post("/login", userHandler.Login)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(issuer.Middleware())
				r.Get("/me", userHandler.GetMe)
			})
		})
	})

	return r
}
