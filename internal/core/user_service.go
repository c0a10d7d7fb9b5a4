package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type userService struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
	cost int
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool, log logrus.FieldLogger) UserService {
	return &userService{pool: pool, log: log.WithField("module", "users"), cost: bcrypt.DefaultCost}
}

const userColumns = "id, username, password_hash, full_name, role, is_active, last_login_at, created_at"

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// NormalizeUsername is the canonical form usernames are stored and looked up in.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, Validationf("Username and password are required")
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Authf("Invalid credentials")
		}
		return nil, fmt.Errorf("failed to load user %q: %w", username, err)
	}
	if !u.IsActive {
		return nil, Authf("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, Authf("Invalid credentials")
	}

	if err := s.pool.QueryRow(ctx,
		"UPDATE users SET last_login_at = now() WHERE id = $1 RETURNING last_login_at", u.ID,
	).Scan(&u.LastLoginAt); err != nil {
		return nil, fmt.Errorf("failed to record login for user %d: %w", u.ID, err)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("User not found")
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	username := NormalizeUsername(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	if username == "" || in.Password == "" || fullName == "" {
		return nil, Validationf("Username, password and full name are required")
	}
	if err := checkPasswordLength("Password", in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = RoleStaff
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		username, string(hash), fullName, role))
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return nil, Conflictf("Username already exists")
		}
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username, "role": u.Role}).Info("user created")
	return u, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int, current, next string) error {
	if current == "" || next == "" {
		return Validationf("Current password and new password are required")
	}
	if err := checkPasswordLength("New password", next); err != nil {
		return err
	}

	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return Authf("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2", string(hash), userID,
	); err != nil {
		return fmt.Errorf("failed to update password for user %d: %w", userID, err)
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}
