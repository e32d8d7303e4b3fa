package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// UserService handles user-related operations
type UserService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(db *db.DB, metrics *metrics.AppMetrics, logger *zap.Logger) *UserService {
	return &UserService{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// CreateUser creates a new user. An empty role defaults to customer.
func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidInput, req.Email)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}

	start := time.Now()
	query := "INSERT INTO users (email, name, role) VALUES (?, ?, ?)"
	result, err := s.db.ExecContext(ctx, query, email, req.Name, role)
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	s.metrics.ActiveUsersCount.Record(ctx, 1, s.metrics.Attrs(
		attribute.String("session_type", "authenticated"),
		attribute.String("role", string(role)),
	))
	s.logger.Info("user created", zap.Int64("user_id", id), zap.String("role", string(role)))

	return &models.User{
		ID:        id,
		Email:     email,
		Name:      req.Name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, role, created_at FROM users WHERE id = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || isNoRows(err))

	if isNoRows(err) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail returns a user by email
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, role, created_at FROM users WHERE email = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || isNoRows(err))

	if isNoRows(err) {
		return nil, &NotFoundError{Resource: "user"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// RoleOf returns the role of a user, used to gate back-office routes
func (s *UserService) RoleOf(ctx context.Context, userID int64) (models.Role, error) {
	start := time.Now()
	query := "SELECT role FROM users WHERE id = ?"
	var role models.Role
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&role)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || isNoRows(err))

	if isNoRows(err) {
		return "", notFound("user", userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
