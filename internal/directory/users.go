package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classbook/internal/models"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// RegisterUser creates a user with a bcrypt-hashed password.
func (db *DB) RegisterUser(ctx context.Context, id, name, password, role string) (*models.User, error) {
	if role == "" {
		role = models.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	query := `INSERT INTO users (id, name, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.db.ExecContext(ctx, query, id, name, string(hash), role, now); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{ID: id, Name: name, Role: role, CreatedAt: now}, nil
}

// Authenticate verifies the password and returns the user.
func (db *DB) Authenticate(ctx context.Context, id, password string) (*models.User, error) {
	user, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns the user or (nil, nil) when the id is unknown.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, password_hash, role, created_at FROM users WHERE id = ?`

	var user models.User
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllUsers returns every registered user, newest first.
func (db *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, name, password_hash, role, created_at FROM users ORDER BY created_at DESC, id`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureAdmin creates the bootstrap admin account unless it already exists.
func (db *DB) EnsureAdmin(ctx context.Context, id, password string) error {
	existing, err := db.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = db.RegisterUser(ctx, id, "Administrator", password, models.RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}
