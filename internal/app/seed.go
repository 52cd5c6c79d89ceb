package app

import (
	"context"

	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/catalog"
	"coopregistry/portal-backend/internal/cooperatives"
)

type demoCooperative struct {
	coop    cooperatives.Cooperative
	members []cooperatives.Member
	status  cooperatives.Status
}

func seedDemo(ctx context.Context, a *App) error {
	crop := &catalog.Category{Name: "Crop production", NameLao: "ການປູກພືດ", Type: "crop"}
	livestock := &catalog.Category{Name: "Livestock", NameLao: "ການລ້ຽງສັດ", Type: "livestock"}
	for _, c := range []*catalog.Category{crop, livestock} {
		if err := a.Categories.Create(ctx, c); err != nil {
			return err
		}
	}
	office := &catalog.Organization{
		Name:     "Provincial Agriculture and Forestry Office",
		NameLao:  "ພະແນກກະສິກຳ ແລະ ປ່າໄມ້ແຂວງ",
		Type:     "provincial_office",
		Province: "Vientiane Capital",
	}
	if err := a.Orgs.Create(ctx, office); err != nil {
		return err
	}

	seeds := []demoCooperative{
		{
			coop: cooperatives.Cooperative{
				LicenseNumber:        "VTE-0001",
				NameLao:              "ສະຫະກອນກະສິກຳບ້ານນາຊາຍ",
				NameEnglish:          "Ban Naxay Agricultural Cooperative",
				CooperativeType:      "agriculture",
				CategoryID:           &crop.ID,
				OrganizationID:       &office.ID,
				Province:             "Vientiane Capital",
				District:             "Xaysetha",
				RegistrationDate:     "2023-04-12",
				ApplicationDate:      "2023-03-01",
				IssuanceLocation:     "Vientiane Capital",
				ChairmanName:         "Somchai Vongsa",
				ChairmanNationality:  "Lao",
				RegisteredCapital:    150000000,
				CapitalInWords:       "One hundred and fifty million kip",
				OfficeAddress:        "Ban Naxay, Xaysetha District",
				Purpose:              "Organic rice and vegetable production",
				SupervisingAuthority: "Provincial Agriculture and Forestry Office",
			},
			members: []cooperatives.Member{
				{FullName: "Somchai Vongsa", Gender: "male", Role: "chairman", Village: "Naxay", JoinedDate: "2023-03-01", Shares: 20},
				{FullName: "Khamla Phommachanh", Gender: "female", Role: "treasurer", Village: "Naxay", JoinedDate: "2023-03-01", Shares: 10},
				{FullName: "Bounmy Sisouk", Gender: "male", Village: "Phonthan", JoinedDate: "2023-05-20", Shares: 5},
			},
			status: cooperatives.StatusApproved,
		},
		{
			coop: cooperatives.Cooperative{
				LicenseNumber:       "CPS-0042",
				NameLao:             "ສະຫະກອນລ້ຽງສັດປາກເຊ",
				NameEnglish:         "Pakse Livestock Cooperative",
				CooperativeType:     "livestock",
				CategoryID:          &livestock.ID,
				Province:            "Champasak",
				District:            "Pakse",
				RegistrationDate:    "2024-01-15",
				IssuanceLocation:    "Pakse",
				ChairmanName:        "Vilayvanh Keomany",
				ChairmanNationality: "Lao",
				RegisteredCapital:   80000000,
				Purpose:             "Cattle and poultry raising",
			},
			members: []cooperatives.Member{
				{FullName: "Vilayvanh Keomany", Gender: "female", Role: "chairman", Village: "Pakse", JoinedDate: "2023-12-01", Shares: 15},
			},
			status: cooperatives.StatusApproved,
		},
		{
			coop: cooperatives.Cooperative{
				LicenseNumber:    "LPB-0007",
				NameLao:          "ສະຫະກອນກາເຟຫຼວງພະບາງ",
				NameEnglish:      "Luang Prabang Coffee Cooperative",
				CooperativeType:  "agriculture",
				CategoryID:       &crop.ID,
				Province:         "Luang Prabang",
				RegistrationDate: "2024-06-03",
				ChairmanName:     "Phonesavanh Inthavong",
			},
		},
	}

	for i := range seeds {
		s := &seeds[i]
		if err := a.Cooperatives.Create(ctx, &s.coop); err != nil {
			return err
		}
		for j := range s.members {
			if err := a.Cooperatives.AddMember(ctx, s.coop.ID, &s.members[j]); err != nil {
				return err
			}
		}
		if s.status != "" {
			if _, err := a.Cooperatives.Transition(ctx, s.coop.ID, s.status, "demo"); err != nil {
				return err
			}
		}
	}
	a.Logger.Info("Demo data seeded", zap.Int("cooperatives", len(seeds)))
	return nil
}
