package ldd

import "sort"

// enumerations holds the LDD value sets used by both canonical-side and
// XML-side validation. Value slices are kept sorted so issue output is
// stable across runs. The tables are package-level constants in spirit:
// populated here, never mutated after init.
var enumerations = map[string][]string{
	"AssetType": {
		"Bond",
		"CertificateOfDepositTimeDeposit",
		"CheckingAccount",
		"MoneyMarketFund",
		"MutualFund",
		"Other",
		"RetirementFund",
		"SavingsAccount",
		"Stock",
	},
	"BankruptcyChapterType": {
		"ChapterEleven",
		"ChapterSeven",
		"ChapterThirteen",
		"ChapterTwelve",
	},
	"BorrowerClassificationType": {
		"Primary",
		"Secondary",
	},
	"BorrowerRoleType": {
		"CoBorrower",
		"Guarantor",
		"Primary",
	},
	"CitizenshipResidencyType": {
		"NonPermanentResidentAlien",
		"NonResidentAlien",
		"PermanentResidentAlien",
		"USCitizen",
		"Unknown",
	},
	"EntityOrganizationType": {
		"Corporation",
		"LimitedLiabilityCompany",
		"LimitedPartnership",
		"Partnership",
		"SCorporation",
		"Trust",
	},
	"GenderType": {
		"Female",
		"InformationNotProvided",
		"Male",
	},
	"HMDAEthnicityType": {
		"HispanicOrLatino",
		"InformationNotProvided",
		"NotHispanicOrLatino",
	},
	"HMDARaceType": {
		"AmericanIndianOrAlaskaNative",
		"Asian",
		"BlackOrAfricanAmerican",
		"InformationNotProvided",
		"NativeHawaiianOrOtherPacificIslander",
		"White",
	},
	"IntegratedDisclosureSectionType": {
		"InitialEscrowPaymentAtClosing",
		"OriginationCharges",
		"OtherCosts",
		"Prepaids",
		"ServicesBorrowerDidNotShopFor",
		"ServicesBorrowerDidShopFor",
		"TaxesAndOtherGovernmentFees",
	},
	"LienPriorityType": {
		"FirstLien",
		"FourthLien",
		"Other",
		"SecondLien",
		"ThirdLien",
	},
	"LoanAmortizationType": {
		"AdjustableRate",
		"Fixed",
		"GEM",
		"GPM",
		"Other",
		"Step",
	},
	// Canonical loan purpose is finer grained than the wire value: the
	// exporter folds the cash-out split into LoanPurposeType plus
	// RefinanceCashOutDeterminationType.
	"CanonicalLoanPurposeType": {
		"CashOutRefinance",
		"ConstructionToPermanent",
		"NoCashOutRefinance",
		"Other",
		"Purchase",
		"Refinance",
	},
	"LoanPurposeType": {
		"ConstructionToPermanent",
		"MortgageModification",
		"Other",
		"Purchase",
		"Refinance",
		"Unknown",
	},
	"MaritalStatusType": {
		"Married",
		"Separated",
		"Unknown",
		"Unmarried",
	},
	"PropertyType": {
		"Condominium",
		"Cooperative",
		"ManufacturedHome",
		"PUD",
		"SingleFamilyAttached",
		"SingleFamilyDetached",
		"TwoToFourUnit",
	},
	"PropertyUsageType": {
		"Investment",
		"PrimaryResidence",
		"SecondHome",
	},
	"REODispositionStatusType": {
		"PendingSale",
		"RetainForPrimaryOrSecondaryResidence",
		"RetainForRental",
		"Sold",
	},
	"RefinanceCashOutDeterminationType": {
		"CashOut",
		"LimitedCashOut",
		"NoCashOut",
	},
	"TaxpayerIdentifierType": {
		"EmployerIdentificationNumber",
		"IndividualTaxpayerIdentificationNumber",
		"SocialSecurityNumber",
	},
	"VestingType": {
		"Entity",
		"Individual",
		"Trust",
	},
	"VendorLoanProgramType": {
		"AssetDepletion",
		"BankStatement",
		"Bridge",
		"DSCR",
		"FullDoc",
	},
}

// xmlElementEnums binds MISMO element names to their enumeration. The
// structure validator checks every occurrence of these elements.
var xmlElementEnums = map[string]string{
	"AssetType":                         "AssetType",
	"BankruptcyChapterType":             "BankruptcyChapterType",
	"BorrowerClassificationType":        "BorrowerClassificationType",
	"CitizenshipResidencyType":          "CitizenshipResidencyType",
	"GenderType":                        "GenderType",
	"HMDAEthnicityType":                 "HMDAEthnicityType",
	"HMDARaceType":                      "HMDARaceType",
	"IntegratedDisclosureSectionType":   "IntegratedDisclosureSectionType",
	"LienPriorityType":                  "LienPriorityType",
	"LoanAmortizationType":              "LoanAmortizationType",
	"LoanPurposeType":                   "LoanPurposeType",
	"MaritalStatusType":                 "MaritalStatusType",
	"OwnedPropertyDispositionStatusType": "REODispositionStatusType",
	"PropertyType":                      "PropertyType",
	"PropertyUsageType":                 "PropertyUsageType",
	"RefinanceCashOutDeterminationType": "RefinanceCashOutDeterminationType",
	"TaxpayerIdentifierType":            "TaxpayerIdentifierType",
}

// EnumValues returns the allowed values for an enumeration and whether
// the enumeration is known.
func EnumValues(enum string) ([]string, bool) {
	values, ok := enumerations[enum]
	return values, ok
}

// EnumAllowed reports whether value belongs to the enumeration. Unknown
// enumerations are allowed through: unrecognized field/enum pairs are
// treated as extension data, not violations.
func EnumAllowed(enum, value string) (allowed, known bool) {
	values, ok := enumerations[enum]
	if !ok {
		return true, false
	}
	idx := sort.SearchStrings(values, value)
	return idx < len(values) && values[idx] == value, true
}

// XMLElementEnum returns the enumeration bound to a MISMO element name,
// if any.
func XMLElementEnum(element string) (string, bool) {
	enum, ok := xmlElementEnums[element]
	return enum, ok
}
