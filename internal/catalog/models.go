// Package catalog holds the reference data cooperatives are classified by:
// categories and supervising organizations.
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"coopregistry/portal-backend/pkg/repository"
)

// Category classifies cooperatives, e.g. crop or livestock
type Category struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	NameLao     string         `json:"name_lao"`
	Type        string         `gorm:"index" json:"type"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Category) GetID() uuid.UUID   { return c.ID }
func (c *Category) SetID(id uuid.UUID) { c.ID = id }
func (c *Category) SearchText() string { return c.Name + " " + c.NameLao + " " + c.Description }

func (c *Category) FilterValue(field string) (string, bool) {
	if field == "type" {
		return c.Type, true
	}
	return "", false
}

// Organization is a supervising authority or partner body
type Organization struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	NameLao   string         `json:"name_lao"`
	Type      string         `gorm:"index" json:"type"` // ministry, provincial_office, ngo
	Province  string         `gorm:"index" json:"province"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (o *Organization) GetID() uuid.UUID   { return o.ID }
func (o *Organization) SetID(id uuid.UUID) { o.ID = id }
func (o *Organization) SearchText() string { return o.Name + " " + o.NameLao }

func (o *Organization) FilterValue(field string) (string, bool) {
	switch field {
	case "type":
		return o.Type, true
	case "province":
		return o.Province, true
	}
	return "", false
}

var (
	CategorySchema = repository.GormSchema{
		SearchColumns: []string{"name", "name_lao", "description"},
		FilterColumns: map[string]string{"type": "type"},
		OrderBy:       "name ASC",
	}
	OrganizationSchema = repository.GormSchema{
		SearchColumns: []string{"name", "name_lao"},
		FilterColumns: map[string]string{"type": "type", "province": "province"},
		OrderBy:       "name ASC",
	}
)

func validateCategory(c *Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

func validateOrganization(o *Organization) error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("name is required")
	}
	if o.Email != "" && !strings.Contains(o.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}
