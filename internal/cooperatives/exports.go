package cooperatives

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"coopregistry/portal-backend/internal/export"
	"coopregistry/portal-backend/internal/locale"
	"coopregistry/portal-backend/pkg/repository"
)

type column struct {
	key string
	en  string
	lo  string
}

var directoryColumns = []column{
	{"license_number", "License No.", "ເລກທະບຽນ"},
	{"name", "Name", "ຊື່ສະຫະກອນ"},
	{"cooperative_type", "Type", "ປະເພດ"},
	{"province", "Province", "ແຂວງ"},
	{"chairman_name", "Chairman", "ປະທານ"},
	{"member_count", "Members", "ສະມາຊິກ"},
	{"registered_capital", "Registered capital", "ທຶນຈົດທະບຽນ"},
	{"registration_date", "Registered", "ວັນທີຈົດທະບຽນ"},
}

var memberColumns = []column{
	{"full_name", "Full name", "ຊື່ ແລະ ນາມສະກຸນ"},
	{"gender", "Gender", "ເພດ"},
	{"role", "Role", "ໜ້າທີ່"},
	{"village", "Village", "ບ້ານ"},
	{"phone", "Phone", "ເບີໂທ"},
	{"joined_date", "Joined", "ວັນທີເຂົ້າຮ່ວມ"},
	{"shares", "Shares", "ຮຸ້ນ"},
}

func headers(l locale.Locale, cols []column) ([]string, []string) {
	keys := make([]string, len(cols))
	labels := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.key
		labels[i] = c.en
		if l == locale.Lao {
			labels[i] = c.lo
		}
	}
	return keys, labels
}

// DirectorySpec builds the tabular export of the cooperative directory. The
// query's search and filters select the rows; every page is included.
func (s *Service) DirectorySpec(ctx context.Context, l locale.Locale, q repository.Query) (export.Spec, error) {
	coops, err := repository.All(ctx, s.coops, q)
	if err != nil {
		return export.Spec{}, fmt.Errorf("failed to load directory: %w", err)
	}

	keys, labels := headers(l, directoryColumns)
	spec := export.Spec{
		Title:       "Cooperative Directory",
		Locale:      l,
		Orientation: export.Landscape,
		Columns:     keys,
		Headers:     labels,
		Rows:        make([]map[string]interface{}, 0, len(coops)),
		Filename:    "cooperative-directory",
	}
	if l == locale.Lao {
		spec.Title = "ລາຍຊື່ສະຫະກອນ"
	}
	if status, ok := q.Filters["status"]; ok {
		spec.Subtitle = status
	}

	for i := range coops {
		c := &coops[i]
		row := map[string]interface{}{
			"license_number":     c.LicenseNumber,
			"name":               c.Name(l == locale.Lao),
			"cooperative_type":   c.CooperativeType,
			"province":           c.Province,
			"member_count":       c.MemberCount,
			"registered_capital": c.RegisteredCapital,
		}
		if c.ChairmanName != "" {
			row["chairman_name"] = c.ChairmanName
		}
		if c.RegistrationDate != "" {
			row["registration_date"] = l.FormatDate(c.RegistrationDate)
		}
		spec.Rows = append(spec.Rows, row)
	}
	return spec, nil
}

// MembersSpec builds the tabular export of one cooperative's members.
func (s *Service) MembersSpec(ctx context.Context, cooperativeID uuid.UUID, l locale.Locale) (export.Spec, error) {
	c, err := s.coops.Get(ctx, cooperativeID)
	if err != nil {
		return export.Spec{}, err
	}
	members, err := repository.All(ctx, s.members, memberQuery(cooperativeID, repository.Query{}))
	if err != nil {
		return export.Spec{}, fmt.Errorf("failed to load members: %w", err)
	}

	keys, labels := headers(l, memberColumns)
	spec := export.Spec{
		Title:       c.Name(l == locale.Lao),
		Subtitle:    c.LicenseNumber,
		Locale:      l,
		Orientation: export.Portrait,
		Columns:     keys,
		Headers:     labels,
		Rows:        make([]map[string]interface{}, 0, len(members)),
		Filename:    "members-" + c.LicenseNumber,
	}
	for _, m := range members {
		row := map[string]interface{}{
			"full_name": m.FullName,
			"role":      m.Role,
			"shares":    m.Shares,
		}
		for key, value := range map[string]string{"gender": m.Gender, "village": m.Village, "phone": m.Phone} {
			if value != "" {
				row[key] = value
			}
		}
		if m.JoinedDate != "" {
			row["joined_date"] = l.FormatDate(m.JoinedDate)
		}
		spec.Rows = append(spec.Rows, row)
	}
	return spec, nil
}
