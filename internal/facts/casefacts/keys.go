package casefacts

// Canonical fact keys read by Normalize. Questionnaire destination paths are
// configured to write these keys.
const (
	KeyJurisdiction = "case.jurisdiction"

	KeyLandlordName     = "landlord.full_name"
	KeyLandlordEmail    = "landlord.email"
	KeyLandlordPhone    = "landlord.phone"
	KeyLandlordAddress  = "landlord" // address fields live under landlord.address_line1 etc.
	KeyAgentName        = "agent.full_name"
	KeyTenantPrefix     = "tenants."
	KeySingleTenantName = "tenant.full_name"
	KeyGuarantorName    = "guarantor.full_name"
	KeyPropertyAddress  = "property"

	KeyTenancyStart        = "tenancy.start_date"
	KeyTenancyEnd          = "tenancy.end_date"
	KeyTenancyType         = "tenancy.type"
	KeyTenancyTermMonths   = "tenancy.term_months"
	KeyRentAmount          = "tenancy.rent_amount"
	KeyRentFrequency       = "tenancy.rent_frequency"
	KeyRentDueDay          = "tenancy.rent_due_day"
	KeyDepositAmount       = "tenancy.deposit_amount"
	KeyDepositProtected    = "tenancy.deposit_protected"
	KeyDepositScheme       = "tenancy.deposit_scheme"
	KeyPrescribedInfoGiven = "tenancy.prescribed_info_given"
	KeyArrearsTotal        = "arrears.total_amount"
	KeyArrearsAsOf         = "arrears.as_of_date"
	KeyClaimAmount         = "claim.amount"
	KeyClaimInterestRate   = "claim.interest_rate"
	KeyClaimDescription    = "claim.description"
	KeyNoticeRoute         = "notice.route"
	KeyNoticeGrounds       = "notice.grounds"
	KeyNoticeServiceDate   = "notice.service_date"
	KeyNoticeExpiryDate    = "notice.expiry_date"
	KeyNoticeServiceMethod = "notice.service_method"
	KeyNoticeParticulars   = "notice.particulars"
	KeyGasSafetyProvided   = "compliance.gas_safety_provided"
	KeyEPCProvided         = "compliance.epc_provided"
	KeyHowToRentProvided   = "compliance.how_to_rent_provided"
	KeyLicensingCompliant  = "compliance.licensing_compliant"
	KeyRetaliatoryRepairs  = "compliance.repair_complaint_pending"
	KeyCourtName           = "court.name"
)
