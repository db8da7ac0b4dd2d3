package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nimbus-portal/internal/models"
	"nimbus-portal/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrAuthRejected = errors.New("invalid credentials")
	ErrUserNotFound = repository.ErrUserNotFound
)

// Outcome is the result of one credentials submission. There is no partial
// success: every submission ends in exactly one of these.
type Outcome int

const (
	Rejected Outcome = iota
	Registered
	Authenticated
)

func (o Outcome) String() string {
	switch o {
	case Registered:
		return "registered"
	case Authenticated:
		return "authenticated"
	default:
		return "rejected"
	}
}

// AuthResult carries the outcome and, unless rejected, the username as stored.
type AuthResult struct {
	Outcome  Outcome
	Username string
}

// Err returns ErrAuthRejected for a rejected result and nil otherwise.
func (r AuthResult) Err() error {
	if r.Outcome == Rejected {
		return ErrAuthRejected
	}
	return nil
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

type AuthService interface {
	// Authenticate registers an unseen username, logs in a known one, or
	// rejects the attempt. Errors are reserved for store failures.
	Authenticate(ctx context.Context, db repository.DBTX, username, password string) (AuthResult, error)
}

type authService struct {
	repo   repository.UserRepository
	hasher PasswordHasher
	logger *zap.Logger
}

func NewAuthService(repo repository.UserRepository, hasher PasswordHasher, logger *zap.Logger) AuthService {
	return &authService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

func (s *authService) Authenticate(ctx context.Context, db repository.DBTX, username, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AuthResult{Outcome: Rejected}, nil
	}

	user, err := s.repo.FindByUsername(ctx, db, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		result, regErr := s.register(ctx, db, username, password)
		if !errors.Is(regErr, repository.ErrDuplicateUser) {
			return result, regErr
		}

		// Another request created the name between our lookup and insert.
		s.logger.Warn("Registration lost a race, retrying as login", zap.String("username", username))
		user, err = s.repo.FindByUsername(ctx, db, username)
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	return s.login(ctx, db, user, password)
}

func (s *authService) register(ctx context.Context, db repository.DBTX, username, password string) (AuthResult, error) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return AuthResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, db, username, passwordHash)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("User registered", zap.String("username", user.Username), zap.Int64("user_id", user.ID))
	return AuthResult{Outcome: Registered, Username: user.Username}, nil
}

func (s *authService) login(ctx context.Context, db repository.DBTX, user *models.User, password string) (AuthResult, error) {
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		// An unreadable hash is indistinguishable from a wrong password to the caller.
		s.logger.Error("Stored password hash could not be verified", zap.String("username", user.Username), zap.Error(err))
		return AuthResult{Outcome: Rejected}, nil
	}
	if !ok {
		s.logger.Info("Rejected login attempt", zap.String("username", user.Username))
		return AuthResult{Outcome: Rejected}, nil
	}

	if err := s.repo.UpdateLoginTimestamp(ctx, db, user.ID); err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))
	return AuthResult{Outcome: Authenticated, Username: user.Username}, nil
}
