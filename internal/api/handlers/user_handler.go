package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/authgate/authgate-be/internal/auth"
	"github.com/authgate/authgate-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for authentication and user management.
type UserHandler struct {
	service services.UserServiceProvider
	issuer  *auth.Issuer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, issuer *auth.Issuer) *UserHandler {
	return &UserHandler{service: service, issuer: issuer}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// readCredentials extracts email and password from a login request. JSON
// bodies and form-encoded bodies are both accepted; a malformed body yields
// empty credentials, which the verifier treats as a lookup miss.
func readCredentials(r *http.Request) AuthPayload {
	var payload AuthPayload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		return payload
	}
	if err := r.ParseForm(); err != nil {
		return payload
	}
	payload.Email = r.PostFormValue("email")
	payload.Password = r.PostFormValue("password")
	return payload
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.CreateUser(payload.Username, payload.Email, payload.Password)
	if err != nil {
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login handles user authentication and token issuance. Unknown email and
// wrong password produce identical responses so callers cannot enumerate
// registered accounts.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload := readCredentials(r)

	user, err := h.service.Authenticate(payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrPasswordMismatch) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "Wrong credentials"})
			return
		}
		log.Error().Err(err).Str("email", payload.Email).Msg("User lookup failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to sign token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	// Set Secure flag based on environment.
	isProd := os.Getenv("APP_ENV") == "production"

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(h.issuer.TTL()),
		HttpOnly: true,
		Secure:   isProd,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(auth.UserClaimsKey).(*auth.Claims)
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	user, err := h.service.GetUserByID(claims.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("User from token not found in DB")
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
