// Package users manages back-office accounts.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
)

const (
	RoleAdmin     = "admin"
	RoleRegistrar = "registrar"
	RoleViewer    = "viewer"

	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// ErrInvalidCredentials is returned for an unknown user, a wrong password or
// a disabled account.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User is a back-office account
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	FullName     string         `json:"full_name"`
	Email        string         `json:"email"`
	Role         string         `gorm:"not null;default:'viewer';index" json:"role"`
	Status       string         `gorm:"not null;default:'active';index" json:"status"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Password     string         `gorm:"-" json:"password,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) GetID() uuid.UUID   { return u.ID }
func (u *User) SetID(id uuid.UUID) { u.ID = id }
func (u *User) SearchText() string { return u.Username + " " + u.FullName + " " + u.Email }

func (u *User) FilterValue(field string) (string, bool) {
	switch field {
	case "role":
		return u.Role, true
	case "status":
		return u.Status, true
	case "username":
		return u.Username, true
	}
	return "", false
}

// Schema maps the query contract onto the users table.
var Schema = repository.GormSchema{
	SearchColumns: []string{"username", "full_name", "email"},
	FilterColumns: map[string]string{"role": "role", "status": "status", "username": "username"},
	OrderBy:       "username ASC",
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleRegistrar || role == RoleViewer
}

// Validate checks a user before it is saved.
func Validate(u *User) error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}
	if u.Role == "" {
		u.Role = RoleViewer
	}
	if !validRole(u.Role) {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	if u.Status != StatusActive && u.Status != StatusDisabled {
		return fmt.Errorf("unknown status %q", u.Status)
	}
	return nil
}

// HashPassword replaces the plain-text password with its bcrypt hash. On
// update an empty password keeps the existing hash.
func HashPassword(ctx context.Context, u, existing *User) error {
	if u.Password == "" {
		if existing == nil {
			return fmt.Errorf("%w: password is required", resource.ErrValidation)
		}
		u.PasswordHash = existing.PasswordHash
		return nil
	}
	if len(u.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", resource.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Password = ""
	return nil
}
