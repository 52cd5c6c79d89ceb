package certificate

import (
	"fmt"

	"coopregistry/portal-backend/internal/locale"
)

// Field keys in print order.
const (
	FieldNameLao          = "name_lao"
	FieldNameEnglish      = "name_english"
	FieldType             = "cooperative_type"
	FieldRegistrationDate = "registration_date"
	FieldApplicationDate  = "application_date"
	FieldChairman         = "chairman_name"
	FieldNationality      = "chairman_nationality"
	FieldCapital          = "registered_capital"
	FieldCapitalInWords   = "capital_in_words"
	FieldMembers          = "member_count"
	FieldTaxID            = "tax_id"
	FieldOfficeAddress    = "office_address"
	FieldAuthority        = "supervising_authority"
	FieldPurpose          = "purpose"
)

// FieldOrder is the fixed top-to-bottom order of certificate fields.
var FieldOrder = []string{
	FieldNameLao,
	FieldNameEnglish,
	FieldType,
	FieldRegistrationDate,
	FieldApplicationDate,
	FieldChairman,
	FieldNationality,
	FieldCapital,
	FieldCapitalInWords,
	FieldMembers,
	FieldTaxID,
	FieldOfficeAddress,
	FieldAuthority,
	FieldPurpose,
}

// wrapped fields take as many lines as their text needs.
var wrapped = map[string]bool{
	FieldCapitalInWords: true,
	FieldOfficeAddress:  true,
	FieldPurpose:        true,
}

type labels struct {
	document      string
	state         string
	motto         string
	title         string
	license       string
	issuedAt      string
	signatureRole string
	fields        map[string]string
}

var english = labels{
	document:      "Cooperative-Certificate",
	state:         "Lao People's Democratic Republic",
	motto:         "Peace Independence Democracy Unity Prosperity",
	title:         "Certificate of Cooperative Registration",
	license:       "License No.",
	issuedAt:      "Issued at %s, %s",
	signatureRole: "Head of the Cooperative Registration Office",
	fields: map[string]string{
		FieldNameLao:          "Name in Lao",
		FieldNameEnglish:      "Name in English",
		FieldType:             "Cooperative type",
		FieldRegistrationDate: "Registration date",
		FieldApplicationDate:  "Application date",
		FieldChairman:         "Chairman",
		FieldNationality:      "Nationality",
		FieldCapital:          "Registered capital",
		FieldCapitalInWords:   "Capital in words",
		FieldMembers:          "Number of members",
		FieldTaxID:            "Tax ID",
		FieldOfficeAddress:    "Office address",
		FieldAuthority:        "Supervising authority",
		FieldPurpose:          "Purpose",
	},
}

var lao = labels{
	document:      "ໃບທະບຽນສະຫະກອນ",
	state:         "ສາທາລະນະລັດ ປະຊາທິປະໄຕ ປະຊາຊົນລາວ",
	motto:         "ສັນຕິພາບ ເອກະລາດ ປະຊາທິປະໄຕ ເອກະພາບ ວັດທະນະຖາວອນ",
	title:         "ໃບທະບຽນສະຫະກອນ",
	license:       "ເລກທີ",
	issuedAt:      "ອອກໃຫ້ທີ່ %s, ວັນທີ %s",
	signatureRole: "ຫົວໜ້າຫ້ອງການທະບຽນສະຫະກອນ",
	fields: map[string]string{
		FieldNameLao:          "ຊື່ສະຫະກອນ (ພາສາລາວ)",
		FieldNameEnglish:      "ຊື່ສະຫະກອນ (ພາສາອັງກິດ)",
		FieldType:             "ປະເພດສະຫະກອນ",
		FieldRegistrationDate: "ວັນທີຈົດທະບຽນ",
		FieldApplicationDate:  "ວັນທີຍື່ນຄຳຮ້ອງ",
		FieldChairman:         "ປະທານສະຫະກອນ",
		FieldNationality:      "ສັນຊາດ",
		FieldCapital:          "ທຶນຈົດທະບຽນ",
		FieldCapitalInWords:   "ທຶນເປັນຕົວໜັງສື",
		FieldMembers:          "ຈຳນວນສະມາຊິກ",
		FieldTaxID:            "ເລກປະຈຳຕົວຜູ້ເສຍອາກອນ",
		FieldOfficeAddress:    "ທີ່ຕັ້ງສຳນັກງານ",
		FieldAuthority:        "ອົງການຄຸ້ມຄອງ",
		FieldPurpose:          "ຈຸດປະສົງ",
	},
}

func labelsFor(l locale.Locale) labels {
	if l == locale.English {
		return english
	}
	return lao
}

// DocumentLabel is the localized label used in certificate filenames.
func DocumentLabel(l locale.Locale) string {
	return labelsFor(l).document
}

// FieldLabel returns the printed label of a field key.
func FieldLabel(l locale.Locale, key string) string {
	return labelsFor(l).fields[key]
}

// values returns the display value of each field for l.
func (r Record) values(l locale.Locale) map[string]string {
	return map[string]string{
		FieldNameLao:          r.NameLao,
		FieldNameEnglish:      r.NameEnglish,
		FieldType:             r.CooperativeType,
		FieldRegistrationDate: l.FormatDate(r.RegistrationDate),
		FieldApplicationDate:  l.FormatDate(r.ApplicationDate),
		FieldChairman:         r.ChairmanName,
		FieldNationality:      r.ChairmanNationality,
		FieldCapital:          l.FormatCurrency(r.RegisteredCapital),
		FieldCapitalInWords:   r.CapitalInWords,
		FieldMembers:          l.FormatCount(r.MemberCount),
		FieldTaxID:            r.TaxID,
		FieldOfficeAddress:    r.OfficeAddress,
		FieldAuthority:        r.SupervisingAuthority,
		FieldPurpose:          r.Purpose,
	}
}

// Line is one labelled field as displayed on a certificate.
type Line struct {
	Key   string
	Label string
	Value string
}

// Lines returns the fields of r in print order.
func (r Record) Lines(l locale.Locale) []Line {
	values := r.values(l)
	lines := make([]Line, 0, len(FieldOrder))
	for _, key := range FieldOrder {
		lines = append(lines, Line{Key: key, Label: FieldLabel(l, key), Value: values[key]})
	}
	return lines
}

// Heading holds the fixed texts printed around the fields.
type Heading struct {
	State         string
	Motto         string
	Title         string
	License       string
	SignatureRole string
}

// HeadingFor returns the fixed certificate texts for l.
func HeadingFor(l locale.Locale) Heading {
	lb := labelsFor(l)
	return Heading{
		State:         lb.state,
		Motto:         lb.motto,
		Title:         lb.title,
		License:       lb.license,
		SignatureRole: lb.signatureRole,
	}
}

// IssuedAt returns the location and date line of the signature block.
func IssuedAt(l locale.Locale, location, date string) string {
	return fmt.Sprintf(labelsFor(l).issuedAt, location, l.FormatDate(date))
}
