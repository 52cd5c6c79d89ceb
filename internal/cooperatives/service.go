package cooperatives

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/certificate"
	"coopregistry/portal-backend/pkg/repository"
	"coopregistry/portal-backend/pkg/resource"
	"coopregistry/portal-backend/pkg/workflows"
)

var (
	// ErrInvalidTransition is returned for a status change the workflow forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotCertifiable is returned when a certificate is requested for a
	// cooperative that is not approved.
	ErrNotCertifiable = errors.New("cooperative is not approved")
)

const dateLayout = "2006-01-02"

// NewWorkflow returns the registration state machine.
func NewWorkflow() *workflows.StateMachine {
	return workflows.NewStateMachine(string(StatusPending), map[string][]string{
		string(StatusPending):   {string(StatusApproved), string(StatusRejected)},
		string(StatusApproved):  {string(StatusSuspended), string(StatusDissolved)},
		string(StatusSuspended): {string(StatusApproved), string(StatusDissolved)},
		string(StatusRejected):  {},
		string(StatusDissolved): {},
	})
}

// StatusNotifier is told about every accepted status change.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, cooperativeID, from, to, by string)
}

// Service manages cooperatives and their members
type Service struct {
	coops     repository.Repository[Cooperative]
	members   repository.Repository[Member]
	workflow  *workflows.StateMachine
	notifiers []StatusNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a cooperative service
func NewService(coops repository.Repository[Cooperative], members repository.Repository[Member], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		coops:    coops,
		members:  members,
		workflow: NewWorkflow(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock sets the clock used for issuance dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithNotifier adds n to the listeners of status changes.
func (s *Service) WithNotifier(n StatusNotifier) *Service {
	s.notifiers = append(s.notifiers, n)
	return s
}

// Validate checks the fields required to register a cooperative.
func Validate(c *Cooperative) error {
	var problems []string
	if strings.TrimSpace(c.LicenseNumber) == "" {
		problems = append(problems, "license_number is required")
	}
	if strings.TrimSpace(c.NameLao) == "" {
		problems = append(problems, "name_lao is required")
	}
	if strings.TrimSpace(c.NameEnglish) == "" {
		problems = append(problems, "name_english is required")
	}
	for field, value := range map[string]string{
		"registration_date": c.RegistrationDate,
		"application_date":  c.ApplicationDate,
		"issuance_date":     c.IssuanceDate,
	} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			problems = append(problems, field+" must be YYYY-MM-DD")
		}
	}
	if c.RegisteredCapital < 0 {
		problems = append(problems, "registered_capital must not be negative")
	}
	if c.MemberCount < 0 {
		problems = append(problems, "member_count must not be negative")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", resource.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Create registers a cooperative in the pending state.
func (s *Service) Create(ctx context.Context, c *Cooperative) error {
	c.LicenseNumber = strings.TrimSpace(c.LicenseNumber)
	if err := Validate(c); err != nil {
		return err
	}
	if err := s.ensureUniqueLicense(ctx, c.LicenseNumber, uuid.Nil); err != nil {
		return err
	}
	c.ID = uuid.Nil
	c.Status = Status(s.workflow.Initial())
	if err := s.coops.Create(ctx, c); err != nil {
		return fmt.Errorf("failed to create cooperative: %w", err)
	}
	s.logger.Info("cooperative registered",
		zap.String("id", c.ID.String()),
		zap.String("license_number", c.LicenseNumber),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Cooperative, error) {
	return s.coops.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q repository.Query) (*repository.Page[Cooperative], error) {
	return s.coops.List(ctx, q)
}

// All returns every cooperative matching q across all pages.
func (s *Service) All(ctx context.Context, q repository.Query) ([]Cooperative, error) {
	return repository.All(ctx, s.coops, q)
}

// Update replaces the editable fields. Status only changes through Transition.
func (s *Service) Update(ctx context.Context, c *Cooperative) error {
	existing, err := s.coops.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	c.LicenseNumber = strings.TrimSpace(c.LicenseNumber)
	if err := Validate(c); err != nil {
		return err
	}
	if c.LicenseNumber != existing.LicenseNumber {
		if err := s.ensureUniqueLicense(ctx, c.LicenseNumber, c.ID); err != nil {
			return err
		}
	}
	c.Status = existing.Status
	c.CreatedAt = existing.CreatedAt
	return s.coops.Update(ctx, c)
}

// Delete removes a cooperative together with its members.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.coops.Get(ctx, id); err != nil {
		return err
	}
	members, err := repository.All(ctx, s.members, memberQuery(id, repository.Query{}))
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := s.members.Delete(ctx, m.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to delete member %s: %w", m.ID, err)
		}
	}
	return s.coops.Delete(ctx, id)
}

// Transition moves a cooperative to a new status on behalf of by. Approval
// stamps the issuance date when none is recorded.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, by string) (*Cooperative, error) {
	c, err := s.coops.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.Transition(string(c.Status), string(to)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}
	from := c.Status
	c.Status = to
	if to == StatusApproved && c.IssuanceDate == "" {
		c.IssuanceDate = s.now().Format(dateLayout)
	}
	if err := s.coops.Update(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("cooperative status changed",
		zap.String("id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("by", by),
	)
	for _, n := range s.notifiers {
		n.StatusChanged(ctx, id.String(), string(from), string(to), by)
	}
	return c, nil
}

// AllowedTransitions lists the statuses reachable from the current one.
func (s *Service) AllowedTransitions(c *Cooperative) []string {
	return s.workflow.GetAllowedTransitions(string(c.Status))
}

// CertificateRecord returns the data printed on the certificate of an
// approved cooperative.
func (s *Service) CertificateRecord(ctx context.Context, id uuid.UUID) (certificate.Record, error) {
	c, err := s.coops.Get(ctx, id)
	if err != nil {
		return certificate.Record{}, err
	}
	if c.Status != StatusApproved {
		return certificate.Record{}, fmt.Errorf("%w: status is %s", ErrNotCertifiable, c.Status)
	}
	return ToRecord(c), nil
}

// ToRecord copies the certificate fields of c.
func ToRecord(c *Cooperative) certificate.Record {
	return certificate.Record{
		LicenseNumber:        c.LicenseNumber,
		RegistrationDate:     c.RegistrationDate,
		ApplicationDate:      c.ApplicationDate,
		IssuanceDate:         c.IssuanceDate,
		NameLao:              c.NameLao,
		NameEnglish:          c.NameEnglish,
		CooperativeType:      c.CooperativeType,
		ChairmanName:         c.ChairmanName,
		ChairmanNationality:  c.ChairmanNationality,
		RegisteredCapital:    c.RegisteredCapital,
		CapitalInWords:       c.CapitalInWords,
		OfficeAddress:        c.OfficeAddress,
		TaxID:                c.TaxID,
		IssuanceLocation:     c.IssuanceLocation,
		MemberCount:          c.MemberCount,
		Purpose:              c.Purpose,
		SupervisingAuthority: c.SupervisingAuthority,
		ChairmanPhoto:        c.ChairmanPhotoKey,
	}
}

// ListMembers lists the members of one cooperative.
func (s *Service) ListMembers(ctx context.Context, cooperativeID uuid.UUID, q repository.Query) (*repository.Page[Member], error) {
	if _, err := s.coops.Get(ctx, cooperativeID); err != nil {
		return nil, err
	}
	return s.members.List(ctx, memberQuery(cooperativeID, q))
}

// AddMember registers a member and refreshes the member count.
func (s *Service) AddMember(ctx context.Context, cooperativeID uuid.UUID, m *Member) error {
	if strings.TrimSpace(m.FullName) == "" {
		return fmt.Errorf("%w: full_name is required", resource.ErrValidation)
	}
	if m.JoinedDate != "" {
		if _, err := time.Parse(dateLayout, m.JoinedDate); err != nil {
			return fmt.Errorf("%w: joined_date must be YYYY-MM-DD", resource.ErrValidation)
		}
	}
	if m.Role == "" {
		m.Role = "member"
	}
	if _, err := s.coops.Get(ctx, cooperativeID); err != nil {
		return err
	}
	m.ID = uuid.Nil
	m.CooperativeID = cooperativeID
	if err := s.members.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return s.refreshMemberCount(ctx, cooperativeID)
}

// UpdateMember updates a member of the given cooperative.
func (s *Service) UpdateMember(ctx context.Context, cooperativeID uuid.UUID, m *Member) error {
	existing, err := s.member(ctx, cooperativeID, m.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.FullName) == "" {
		return fmt.Errorf("%w: full_name is required", resource.ErrValidation)
	}
	m.CooperativeID = cooperativeID
	m.CreatedAt = existing.CreatedAt
	return s.members.Update(ctx, m)
}

// RemoveMember deletes a member and refreshes the member count.
func (s *Service) RemoveMember(ctx context.Context, cooperativeID, memberID uuid.UUID) error {
	if _, err := s.member(ctx, cooperativeID, memberID); err != nil {
		return err
	}
	if err := s.members.Delete(ctx, memberID); err != nil {
		return err
	}
	return s.refreshMemberCount(ctx, cooperativeID)
}

func (s *Service) member(ctx context.Context, cooperativeID, memberID uuid.UUID) (*Member, error) {
	m, err := s.members.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.CooperativeID != cooperativeID {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

func (s *Service) refreshMemberCount(ctx context.Context, cooperativeID uuid.UUID) error {
	page, err := s.members.List(ctx, memberQuery(cooperativeID, repository.Query{PageSize: 1}))
	if err != nil {
		return err
	}
	c, err := s.coops.Get(ctx, cooperativeID)
	if err != nil {
		return err
	}
	c.MemberCount = int(page.Total)
	return s.coops.Update(ctx, c)
}

func (s *Service) ensureUniqueLicense(ctx context.Context, license string, self uuid.UUID) error {
	page, err := s.coops.List(ctx, repository.Query{PageSize: 1}.WithFilter("license_number", license))
	if err != nil {
		return err
	}
	for _, c := range page.Items {
		if c.ID != self {
			return fmt.Errorf("%w: license number %s is already registered", resource.ErrConflict, license)
		}
	}
	return nil
}

func memberQuery(cooperativeID uuid.UUID, q repository.Query) repository.Query {
	return q.Normalize().WithFilter("cooperative_id", cooperativeID.String())
}
