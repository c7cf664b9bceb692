// Package auth provides account signup, login and bearer token handling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/ashureev/chat-relay/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "chat-relay"

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned by ParseToken for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
)

var credentialsValidate = validator.New()

// Credentials is an email and password pair.
// bcrypt ignores input beyond 72 bytes, hence the password cap.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Result is returned by Signup and Login.
type Result struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Claims are the signed contents of a bearer token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and verifies account credentials.
type Service struct {
	repo   store.Repository
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates an auth service signing tokens with secret.
func NewService(repo store.Repository, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new account and returns a token for it.
func (s *Service) Signup(ctx context.Context, creds Credentials) (*Result, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		UserID:       uuid.NewString(),
		Email:        creds.Email,
		PasswordHash: string(hash),
		LastSeenAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User signed up", "user_id", user.UserID)
	return &Result{Token: token, User: user}, nil
}

// Login verifies credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Result, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.repo.UpdateLastSeen(ctx, user.UserID, now); err != nil {
		s.logger.Warn("Failed to update last seen on login", "user_id", user.UserID, "error", err)
	}
	user.LastSeenAt = now

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, User: user}, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and returns its claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Touch records activity for an authenticated user.
func (s *Service) Touch(ctx context.Context, userID string) error {
	return s.repo.UpdateLastSeen(ctx, userID, s.now())
}

func validateCredentials(creds Credentials) error {
	err := credentialsValidate.Struct(creds)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return domain.Validation("a valid email is required")
		case "Password":
			return domain.Validation("password must be 8 to 72 characters")
		}
	}
	return domain.NewError(domain.KindValidation, "invalid credentials", domain.WithCause(err))
}
