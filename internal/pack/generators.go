package pack

import (
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

// Document specs shared across families. Order inside a family is fixed by the
// generator, which is what keeps numbering stable.
var (
	specForm6A = Spec{Key: "section_21_notice", Title: "Form 6A: Notice requiring possession (section 21)", Category: CategoryNotice, Template: "form_6a"}
	specForm3  = Spec{Key: "section_8_notice", Title: "Form 3: Notice seeking possession (section 8)", Category: CategoryNotice, Template: "form_3"}
	specRHW16  = Spec{Key: "section_173_notice", Title: "Form RHW16: Notice under section 173", Category: CategoryNotice, Template: "rhw16"}
	specRHW23  = Spec{Key: "breach_notice", Title: "Form RHW23: Notice before making a possession claim", Category: CategoryNotice, Template: "rhw23"}
	specNTL    = Spec{Key: "notice_to_leave", Title: "Notice to Leave", Category: CategoryNotice, Template: "notice_to_leave"}

	specN5B      = Spec{Key: "n5b_claim", Title: "Form N5B: Claim for possession (accelerated procedure)", Category: CategoryCourt, Template: "n5b"}
	specN5       = Spec{Key: "n5_claim", Title: "Form N5: Claim form for possession of property", Category: CategoryCourt, Template: "n5"}
	specN119     = Spec{Key: "n119_particulars", Title: "Form N119: Particulars of claim for possession", Category: CategoryCourt, Template: "n119"}
	specFormE    = Spec{Key: "form_e_application", Title: "Form E: Application for an eviction order", Category: CategoryCourt, Template: "form_e"}
	specWitness  = Spec{Key: "witness_statement", Title: "Witness statement", Category: CategoryEvidence, Template: "witness_statement"}
	specService  = Spec{Key: "certificate_of_service", Title: "Certificate of service", Category: CategoryEvidence, Template: "certificate_of_service", Optional: true}
	specSchedule = Spec{Key: "arrears_schedule", Title: "Schedule of rent arrears", Category: CategorySchedule, Template: "arrears_schedule"}

	specLetterBeforeClaim = Spec{Key: "letter_before_claim", Title: "Letter before claim", Category: CategoryLetter, Template: "letter_before_claim"}
	specN1                = Spec{Key: "n1_claim", Title: "Form N1: Claim form (money claim)", Category: CategoryCourt, Template: "n1"}
	specParticulars       = Spec{Key: "particulars_of_claim", Title: "Particulars of claim", Category: CategoryCourt, Template: "particulars_of_claim"}
	specSimpleProcedure   = Spec{Key: "simple_procedure_claim", Title: "Simple Procedure claim form (Form 3A)", Category: CategoryCourt, Template: "simple_procedure_3a"}

	specInventory     = Spec{Key: "inventory", Title: "Inventory and schedule of condition", Category: CategorySchedule, Template: "inventory", Optional: true}
	specGuarantorDeed = Spec{Key: "guarantor_deed", Title: "Deed of guarantee", Category: CategoryAgreement, Template: "guarantor_deed"}
)

func defaultGenerators() map[domain.ProductType]GeneratorFunc {
	return map[domain.ProductType]GeneratorFunc{
		domain.ProductNoticeOnly:               generateNoticeOnly,
		domain.ProductCompletePack:             generateCompletePack,
		domain.ProductMoneyClaim:               generateMoneyClaim,
		domain.ProductTenancyAgreementStandard: generateTenancyAgreement(false),
		domain.ProductTenancyAgreementPremium:  generateTenancyAgreement(true),
	}
}

// requireParties checks the facts every document names.
func requireParties(cf casefacts.CaseFacts) error {
	for _, field := range []string{casefacts.KeyLandlordName, "tenants", casefacts.KeyPropertyAddress} {
		if !cf.Has(field) {
			return missing(field)
		}
	}
	return nil
}

// noticeSpec picks the statutory notice for the route and jurisdiction.
func noticeSpec(in Input) (Spec, error) {
	cf := in.Facts
	route := cf.Notice.Route
	if route == casefacts.RouteNone {
		return Spec{}, missing(casefacts.KeyNoticeRoute)
	}

	var spec Spec
	switch {
	case in.Jurisdiction == domain.JurisdictionEngland && route == casefacts.RouteSection21:
		spec = specForm6A
	case in.Jurisdiction == domain.JurisdictionEngland && route == casefacts.RouteSection8:
		spec = specForm3
	case in.Jurisdiction == domain.JurisdictionWales && route == casefacts.RouteSection173:
		spec = specRHW16
	case in.Jurisdiction == domain.JurisdictionWales && route == casefacts.RouteSection8:
		spec = specRHW23
	case in.Jurisdiction == domain.JurisdictionScotland && route == casefacts.RouteNoticeToLeave:
		spec = specNTL
	default:
		return Spec{}, unsupported(string(route) + " notice in " + string(in.Jurisdiction))
	}

	if (route == casefacts.RouteSection8 || route == casefacts.RouteNoticeToLeave) && len(cf.Notice.Grounds) == 0 {
		return Spec{}, missing(casefacts.KeyNoticeGrounds)
	}
	if cf.Notice.ServiceDate == nil {
		return Spec{}, missing(casefacts.KeyNoticeServiceDate)
	}
	return spec, nil
}

func generateNoticeOnly(in Input) ([]Spec, error) {
	if err := requireParties(in.Facts); err != nil {
		return nil, err
	}
	notice, err := noticeSpec(in)
	if err != nil {
		return nil, err
	}
	return []Spec{notice}, nil
}

func generateCompletePack(in Input) ([]Spec, error) {
	cf := in.Facts
	if err := requireParties(cf); err != nil {
		return nil, err
	}
	if cf.Tenancy.StartDate == nil {
		return nil, missing(casefacts.KeyTenancyStart)
	}
	notice, err := noticeSpec(in)
	if err != nil {
		return nil, err
	}

	specs := []Spec{notice}
	switch notice.Key {
	case specForm6A.Key:
		specs = append(specs, specN5B, specWitness, specService)
	case specForm3.Key:
		specs = append(specs, specN5, specN119)
		if cf.Financials.ArrearsTotal > 0 {
			specs = append(specs, specSchedule)
		}
		specs = append(specs, specWitness, specService)
	case specNTL.Key:
		specs = append(specs, specFormE)
		if cf.Financials.ArrearsTotal > 0 {
			specs = append(specs, specSchedule)
		}
		specs = append(specs, specService)
	default:
		return nil, unsupported("complete pack for " + notice.Key)
	}
	return specs, nil
}

func generateMoneyClaim(in Input) ([]Spec, error) {
	cf := in.Facts
	if err := requireParties(cf); err != nil {
		return nil, err
	}
	if !cf.Has(casefacts.KeyClaimAmount) {
		return nil, missing(casefacts.KeyClaimAmount)
	}

	var specs []Spec
	switch in.Jurisdiction {
	case domain.JurisdictionEngland, domain.JurisdictionWales:
		specs = []Spec{specLetterBeforeClaim, specN1, specParticulars}
	case domain.JurisdictionScotland:
		specs = []Spec{specSimpleProcedure}
	default:
		return nil, unsupported("money claim in " + string(in.Jurisdiction))
	}
	if cf.Financials.ArrearsTotal > 0 {
		specs = append(specs, specSchedule)
	}
	return specs, nil
}

// generateTenancyAgreement omits the guarantor deed when no guarantor is named.
func generateTenancyAgreement(premium bool) GeneratorFunc {
	return func(in Input) ([]Spec, error) {
		cf := in.Facts
		if err := requireParties(cf); err != nil {
			return nil, err
		}
		for _, field := range []string{casefacts.KeyTenancyStart, casefacts.KeyRentAmount, casefacts.KeyRentFrequency} {
			if !cf.Has(field) {
				return nil, missing(field)
			}
		}
		name, ok := agreementNames[in.Jurisdiction]
		if !ok {
			return nil, unsupported("tenancy agreement in " + string(in.Jurisdiction))
		}

		specs := []Spec{{Key: "tenancy_agreement", Title: name, Category: CategoryAgreement, Template: "tenancy_agreement"}}
		if premium {
			specs = append(specs, specInventory)
			if cf.Has(casefacts.KeyGuarantorName) {
				specs = append(specs, specGuarantorDeed)
			}
		}
		return specs, nil
	}
}
