// Package canonical defines the schema-agnostic loan snapshot exchanged
// with the interchange engine. A snapshot is a plain nested record: the
// surrounding origination system produces it, the engine serializes it
// to MISMO XML or recovers it from inbound XML. Collections are
// unordered on input; the sequence manager assigns stable ordinals and
// labels before serialization.
package canonical

import "time"

// Snapshot is one deal: exactly one subject loan plus its borrowers,
// properties, owned real estate, assets, and fees.
type Snapshot struct {
	Loan       Loan          `json:"loan"`
	Borrowers  []Borrower    `json:"borrowers,omitempty"`
	Properties []Property    `json:"properties,omitempty"`
	REO        []REOProperty `json:"reo,omitempty"`
	Assets     []Asset       `json:"assets,omitempty"`
	Fees       []Fee         `json:"fees,omitempty"`
}

// Loan carries subject-loan terms. Vendor underwriting fields (DSCR,
// business purpose, program) ride along and are emitted only through
// the extension registry, never into core MISMO paths.
type Loan struct {
	Amount           float64  `json:"amount"`
	InterestRate     float64  `json:"interest_rate"` // note rate, percent
	TermMonths       int      `json:"term_months"`
	Purpose          string   `json:"purpose"` // LoanPurposeType
	AmortizationType string   `json:"amortization_type,omitempty"`
	LienPriority     string   `json:"lien_priority,omitempty"`
	LTV              float64  `json:"ltv,omitempty"` // percent
	CashOutAmount    *float64 `json:"cash_out_amount,omitempty"`
	InterestOnly     bool     `json:"interest_only,omitempty"`
	BalloonPayment   bool     `json:"balloon_payment,omitempty"`

	VestingType string `json:"vesting_type,omitempty"` // Individual | Entity | Trust
	EntityName  string `json:"entity_name,omitempty"`
	EntityType  string `json:"entity_type,omitempty"`

	DSCR                    *float64 `json:"dscr,omitempty"`
	BusinessPurpose         *bool    `json:"business_purpose,omitempty"`
	ProgramType             string   `json:"program_type,omitempty"`
	PrepaymentPenaltyMonths *int     `json:"prepayment_penalty_months,omitempty"`
}

// Borrower is an individual obligor. SequenceNumber and Label are
// assigned by the sequence manager; pre-existing non-zero sequence
// numbers are preserved when unique.
type Borrower struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"-"`

	Role       string `json:"role"` // Primary | CoBorrower | Guarantor
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	SuffixName string `json:"suffix_name,omitempty"`

	SSN       string `json:"ssn,omitempty"`
	BirthDate string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`

	MailingAddress Address `json:"mailing_address,omitempty"`

	Citizenship   string `json:"citizenship,omitempty"`
	MaritalStatus string `json:"marital_status,omitempty"`
	CreditScore   *int   `json:"credit_score,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`

	Declarations *Declarations `json:"declarations,omitempty"`
	Demographics *Demographics `json:"demographics,omitempty"`
}

// Declarations mirrors the URLA declaration block.
type Declarations struct {
	Bankruptcy            bool   `json:"bankruptcy,omitempty"`
	BankruptcyChapter     string `json:"bankruptcy_chapter,omitempty"`
	Foreclosure           bool   `json:"foreclosure,omitempty"`
	OutstandingJudgments  bool   `json:"outstanding_judgments,omitempty"`
	PartyToLawsuit        bool   `json:"party_to_lawsuit,omitempty"`
	DelinquentFederalDebt bool   `json:"delinquent_federal_debt,omitempty"`
}

// Demographics mirrors the HMDA government monitoring block.
type Demographics struct {
	Ethnicity string `json:"ethnicity,omitempty"`
	Race      string `json:"race,omitempty"`
	Sex       string `json:"sex,omitempty"`
	Refused   bool   `json:"refused,omitempty"`
}

// Property is a mortgaged property. The subject property is the first
// in sequence order; blanket loans carry several.
type Property struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"-"`

	Address        Address  `json:"address"`
	PropertyType   string   `json:"property_type,omitempty"`
	Occupancy      string   `json:"occupancy,omitempty"` // PropertyUsageType
	EstimatedValue float64  `json:"estimated_value,omitempty"`
	PurchasePrice  *float64 `json:"purchase_price,omitempty"`

	MonthlyRentalIncome *float64 `json:"monthly_rental_income,omitempty"`
	ShortTermRental     *bool    `json:"short_term_rental,omitempty"`
	OccupancyRate       *float64 `json:"occupancy_rate,omitempty"` // percent, short-term rentals
}

// REOProperty is real estate the borrower already owns.
type REOProperty struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"-"`

	Address             Address  `json:"address"`
	MarketValue         float64  `json:"market_value,omitempty"`
	LienBalance         *float64 `json:"lien_balance,omitempty"`
	MonthlyRentalIncome *float64 `json:"monthly_rental_income,omitempty"`
	Disposition         string   `json:"disposition,omitempty"` // REODispositionStatusType
}

// Asset is a depository or investment account.
type Asset struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"-"`

	AccountType   string  `json:"account_type"` // AssetType
	HolderName    string  `json:"holder_name,omitempty"`
	AccountNumber string  `json:"account_number,omitempty"`
	Balance       float64 `json:"balance,omitempty"`
}

// Fee is a single closing-cost line item.
type Fee struct {
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Label          string `json:"-"`

	Name     string  `json:"name"`
	Category string  `json:"category"` // IntegratedDisclosureSectionType
	Amount   float64 `json:"amount"`
}

// Address is a US street address.
type Address struct {
	Street string `json:"street,omitempty"`
	Unit   string `json:"unit,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// OneLine renders the address as a single comparable string. The
// sequence manager uses it as a sort key, so formatting here is part of
// the determinism contract.
func (a Address) OneLine() string {
	out := a.Street
	if a.Unit != "" {
		out += " " + a.Unit
	}
	if a.City != "" {
		out += ", " + a.City
	}
	if a.State != "" {
		out += ", " + a.State
	}
	if a.Zip != "" {
		out += " " + a.Zip
	}
	return out
}

// IsZero reports whether no component of the address is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.Unit == "" && a.City == "" && a.State == "" && a.Zip == ""
}
