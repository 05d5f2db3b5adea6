package domain

import (
	"strings"

	dErrors "leasepack/pkg/domain-errors"
)

// ProductType identifies a purchasable product family.
type ProductType string

const (
	ProductNoticeOnly               ProductType = "notice_only"
	ProductCompletePack             ProductType = "complete_pack"
	ProductMoneyClaim               ProductType = "money_claim"
	ProductTenancyAgreementStandard ProductType = "tenancy_agreement_standard"
	ProductTenancyAgreementPremium  ProductType = "tenancy_agreement_premium"
	ProductLandlordSubscription     ProductType = "landlord_subscription"
)

var validProducts = map[ProductType]bool{
	ProductNoticeOnly:               true,
	ProductCompletePack:             true,
	ProductMoneyClaim:               true,
	ProductTenancyAgreementStandard: true,
	ProductTenancyAgreementPremium:  true,
	ProductLandlordSubscription:     true,
}

// ParseProductType validates a product type from external input.
func ParseProductType(s string) (ProductType, error) {
	p := ProductType(strings.ToLower(strings.TrimSpace(s)))
	if !validProducts[p] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown product_type: "+s)
	}
	return p, nil
}

// IsSubscription reports whether the product is a recurring plan with no pack.
func (p ProductType) IsSubscription() bool {
	return p == ProductLandlordSubscription
}

func (p ProductType) String() string { return string(p) }

// Jurisdiction is a UK legal jurisdiction.
type Jurisdiction string

const (
	JurisdictionEngland         Jurisdiction = "england"
	JurisdictionWales           Jurisdiction = "wales"
	JurisdictionScotland        Jurisdiction = "scotland"
	JurisdictionNorthernIreland Jurisdiction = "northern_ireland"
)

var jurisdictionAliases = map[string]Jurisdiction{
	"england":          JurisdictionEngland,
	"england-wales":    JurisdictionEngland,
	"wales":            JurisdictionWales,
	"scotland":         JurisdictionScotland,
	"northern_ireland": JurisdictionNorthernIreland,
	"northern-ireland": JurisdictionNorthernIreland,
	"ni":               JurisdictionNorthernIreland,
}

// ParseJurisdiction validates a jurisdiction, accepting the hyphenated spellings
// the questionnaire has historically sent.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	j, ok := jurisdictionAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown jurisdiction: "+s)
	}
	return j, nil
}

func (j Jurisdiction) String() string { return string(j) }
