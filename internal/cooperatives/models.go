package cooperatives

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"coopregistry/portal-backend/pkg/repository"
)

// Status is the registration state of a cooperative
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
	StatusDissolved Status = "dissolved"
)

// Cooperative is a registered agricultural cooperative
type Cooperative struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LicenseNumber        string         `gorm:"uniqueIndex;not null" json:"license_number"`
	NameLao              string         `gorm:"not null" json:"name_lao"`
	NameEnglish          string         `gorm:"not null" json:"name_english"`
	CooperativeType      string         `gorm:"index" json:"cooperative_type"`
	CategoryID           *uuid.UUID     `gorm:"type:uuid" json:"category_id,omitempty"`
	OrganizationID       *uuid.UUID     `gorm:"type:uuid" json:"organization_id,omitempty"`
	Province             string         `gorm:"index" json:"province"`
	District             string         `json:"district"`
	RegistrationDate     string         `json:"registration_date"` // YYYY-MM-DD
	ApplicationDate      string         `json:"application_date"`
	IssuanceDate         string         `json:"issuance_date"`
	IssuanceLocation     string         `json:"issuance_location"`
	ChairmanName         string         `json:"chairman_name"`
	ChairmanNationality  string         `json:"chairman_nationality"`
	ChairmanPhotoKey     string         `json:"chairman_photo_key,omitempty"`
	RegisteredCapital    float64        `json:"registered_capital"`
	CapitalInWords       string         `json:"capital_in_words"`
	OfficeAddress        string         `json:"office_address"`
	TaxID                string         `json:"tax_id"`
	MemberCount          int            `json:"member_count"`
	Purpose              string         `json:"purpose"`
	SupervisingAuthority string         `json:"supervising_authority"`
	Status               Status         `gorm:"not null;default:'pending';index" json:"status"`
	Metadata             datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Cooperative) GetID() uuid.UUID   { return c.ID }
func (c *Cooperative) SetID(id uuid.UUID) { c.ID = id }

func (c *Cooperative) SearchText() string {
	return strings.Join([]string{c.LicenseNumber, c.NameLao, c.NameEnglish, c.ChairmanName}, " ")
}

func (c *Cooperative) FilterValue(field string) (string, bool) {
	switch field {
	case "type", "cooperative_type":
		return c.CooperativeType, true
	case "status":
		return string(c.Status), true
	case "province":
		return c.Province, true
	case "license_number":
		return c.LicenseNumber, true
	case "category_id":
		return optionalID(c.CategoryID), true
	case "organization_id":
		return optionalID(c.OrganizationID), true
	}
	return "", false
}

// Name returns the cooperative name for a Lao or English reader.
func (c *Cooperative) Name(lao bool) string {
	if lao {
		return c.NameLao
	}
	return c.NameEnglish
}

// Member is a person registered as a member of a cooperative
type Member struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CooperativeID uuid.UUID      `gorm:"type:uuid;not null;index" json:"cooperative_id"`
	FullName      string         `gorm:"not null" json:"full_name"`
	Gender        string         `json:"gender"`
	Role          string         `gorm:"not null;default:'member'" json:"role"`
	Phone         string         `json:"phone"`
	Village       string         `json:"village"`
	JoinedDate    string         `json:"joined_date"`
	Shares        float64        `json:"shares"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Member) GetID() uuid.UUID   { return m.ID }
func (m *Member) SetID(id uuid.UUID) { m.ID = id }

func (m *Member) SearchText() string {
	return strings.Join([]string{m.FullName, m.Phone, m.Village}, " ")
}

func (m *Member) FilterValue(field string) (string, bool) {
	switch field {
	case "cooperative_id":
		return m.CooperativeID.String(), true
	case "role":
		return m.Role, true
	case "gender":
		return m.Gender, true
	}
	return "", false
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// CooperativeSchema maps the query contract onto the cooperatives table.
var CooperativeSchema = repository.GormSchema{
	SearchColumns: []string{"license_number", "name_lao", "name_english", "chairman_name"},
	FilterColumns: map[string]string{
		"type":             "cooperative_type",
		"cooperative_type": "cooperative_type",
		"status":           "status",
		"province":         "province",
		"license_number":   "license_number",
		"category_id":      "category_id",
		"organization_id":  "organization_id",
	},
}

// MemberSchema maps the query contract onto the members table.
var MemberSchema = repository.GormSchema{
	SearchColumns: []string{"full_name", "phone", "village"},
	FilterColumns: map[string]string{
		"cooperative_id": "cooperative_id",
		"role":           "role",
		"gender":         "gender",
	},
	OrderBy: "full_name ASC",
}
