package certificate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord is returned before any drawing when a record is unusable.
var ErrInvalidRecord = errors.New("invalid certificate record")

// Record is the registry data printed on a cooperative certificate. Dates are
// kept as the strings stored on the registry and formatted per locale.
type Record struct {
	LicenseNumber        string  `json:"license_number"`
	RegistrationDate     string  `json:"registration_date"`
	ApplicationDate      string  `json:"application_date"`
	IssuanceDate         string  `json:"issuance_date"`
	NameLao              string  `json:"name_lao"`
	NameEnglish          string  `json:"name_english"`
	CooperativeType      string  `json:"cooperative_type"`
	ChairmanName         string  `json:"chairman_name"`
	ChairmanNationality  string  `json:"chairman_nationality"`
	RegisteredCapital    float64 `json:"registered_capital"`
	CapitalInWords       string  `json:"capital_in_words"`
	OfficeAddress        string  `json:"office_address"`
	TaxID                string  `json:"tax_id"`
	IssuanceLocation     string  `json:"issuance_location"`
	MemberCount          int     `json:"member_count"`
	Purpose              string  `json:"purpose"`
	SupervisingAuthority string  `json:"supervising_authority"`
	// ChairmanPhoto is an asset reference; empty means no photo.
	ChairmanPhoto string `json:"chairman_photo,omitempty"`
}

// Validate checks the required fields.
func (r Record) Validate() error {
	var missing []string
	if strings.TrimSpace(r.LicenseNumber) == "" {
		missing = append(missing, "license number")
	}
	if strings.TrimSpace(r.NameLao) == "" {
		missing = append(missing, "Lao name")
	}
	if strings.TrimSpace(r.NameEnglish) == "" {
		missing = append(missing, "English name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	if r.RegisteredCapital < 0 {
		return fmt.Errorf("%w: registered capital must not be negative", ErrInvalidRecord)
	}
	if r.MemberCount < 0 {
		return fmt.Errorf("%w: member count must not be negative", ErrInvalidRecord)
	}
	return nil
}
