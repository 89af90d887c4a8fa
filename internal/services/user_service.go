package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/authgate/authgate-be/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Verification failure variants. Callers that shape HTTP responses must
// collapse both into one generic rejection so the response never reveals
// whether the email exists.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordMismatch = errors.New("password does not match")
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	CreateUser(username, email, password string) (models.User, error)
	Authenticate(email, password string) (models.User, error)
}

// UserService provides user lookup and credential verification backed by SQL.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(email string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(username, email, password string) (models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	_, err = stmt.Exec(user.ID, user.Username, user.Email, user.PasswordHash)
	if err != nil {
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// EnsureUser creates a user with the given credentials if no account exists
// for the email yet. Intended for explicit dev/test seeding, never called
// implicitly.
func (s *UserService) EnsureUser(username, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err == nil {
		user.PasswordHash = ""
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	return s.CreateUser(username, email, password)
}

// Authenticate verifies a user's credentials. Empty email or password is
// treated as a lookup miss rather than a distinct validation error, keeping
// external behavior uniform. The bcrypt comparison is constant-time.
func (s *UserService) Authenticate(email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, ErrUserNotFound
	}

	user, err := s.GetUserByEmail(email)
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrPasswordMismatch
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}
