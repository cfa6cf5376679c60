// Package importer recovers canonical loan data from inbound MISMO XML.
// A fixed table maps resolved element paths to canonical fields; the
// first match per path wins. Every text-bearing node the table does not
// cover is retained as an unmapped node with a content hash and a
// redacted preview. Nothing is silently dropped.
package importer

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/mismoxml"
	"github.com/loanglide/mismo/internal/redact"
	"github.com/loanglide/mismo/report"
)

//go:embed mapping.yaml
var mappingYAML []byte

// coverageFloor is the mapped/total ratio below which a coverage
// warning fires.
const coverageFloor = 0.8

type mappingTable struct {
	Loan          map[string]string `yaml:"loan"`
	Party         map[string]string `yaml:"party"`
	Collateral    map[string]string `yaml:"collateral"`
	Asset         map[string]string `yaml:"asset"`
	OwnedProperty map[string]string `yaml:"owned_property"`
	Fee           map[string]string `yaml:"fee"`
}

// Importer maps inbound documents. It holds only the immutable mapping
// table and is safe for concurrent use.
type Importer struct {
	table mappingTable
	ldd   *ldd.Engine
}

// New loads the embedded mapping table.
func New(lddEngine *ldd.Engine) (*Importer, error) {
	var table mappingTable
	if err := yaml.Unmarshal(mappingYAML, &table); err != nil {
		return nil, fmt.Errorf("parse import mapping table: %w", err)
	}
	return &Importer{table: table, ldd: lddEngine}, nil
}

// Result is the recovered snapshot plus the full data-retention ledger:
// mapped count + len(Unmapped) always equals TextNodeCount.
type Result struct {
	Snapshot      *canonical.Snapshot
	Unmapped      []report.UnmappedNode
	Issues        report.List
	MappedCount   int
	TextNodeCount int
}

// Import walks the document and recovers canonical data. The document
// must already have passed well-formedness; callers run the structure
// validator separately.
func (im *Importer) Import(doc []byte) (*Result, error) {
	b := newBuilder(im.table)
	if err := mismoxml.Walk(doc, b.handle); err != nil {
		return nil, fmt.Errorf("walk document: %w", err)
	}
	snap := b.finish()

	res := &Result{
		Snapshot:      snap,
		Unmapped:      b.unmapped,
		MappedCount:   b.mapped,
		TextNodeCount: b.textNodes,
	}

	for _, un := range b.unmapped {
		res.Issues = append(res.Issues, report.Newf(report.CategoryMappingGap,
			report.CodeUnmappedNode, report.SeverityWarning, un.XPath,
			"node %s is retained but not mapped to a canonical field", un.ElementName))
	}
	if b.textNodes > 0 {
		coverage := float64(b.mapped) / float64(b.textNodes)
		if coverage < coverageFloor {
			res.Issues = append(res.Issues, report.Newf(report.CategoryMappingGap,
				report.CodeMappingCoverage, report.SeverityWarning, "",
				"mapping coverage %.0f%% is below the %.0f%% floor",
				coverage*100, coverageFloor*100))
		}
	}
	if b.sensitive > 0 {
		res.Issues = append(res.Issues, report.Newf(report.CategorySensitive,
			report.CodeSensitiveValue, report.SeverityInfo, "",
			"%d sensitive values were redacted at the reporting boundary", b.sensitive))
	}

	res.Issues = append(res.Issues, im.ldd.Validate(snap).Issues...)
	return res, nil
}

// HashInput returns the audit digest of the raw document.
func HashInput(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// builder accumulates canonical data during a single walk.
type builder struct {
	table mappingTable

	snap canonical.Snapshot

	// Wire values resolved after the walk.
	wirePurpose        string
	cashOutDetermined  string
	pendingCashOut     *float64

	party      *partyState
	collateral *collateralState
	asset      *assetState
	fee        *feeState

	instances int

	// Indexed path bookkeeping for unmapped-node xpaths.
	indexed  []string
	counters []map[string]int

	consumed map[string]struct{}

	unmapped  []report.UnmappedNode
	mapped    int
	textNodes int
	sensitive int
}

type partyState struct {
	borrower       canonical.Borrower
	path           string
	scope          string
	classification string
	partyRole      string
	entityName     string
	entityType     string
}

type collateralState struct {
	property canonical.Property
	path     string
	scope    string
}

type assetState struct {
	asset     canonical.Asset
	reo       canonical.REOProperty
	path      string
	scope     string
	ownedPath string
	isREO     bool
}

type feeState struct {
	fee   canonical.Fee
	path  string
	scope string
}

func newBuilder(table mappingTable) *builder {
	return &builder{
		table:    table,
		counters: []map[string]int{{}},
		consumed: map[string]struct{}{},
	}
}

func (b *builder) handle(ev mismoxml.Event) error {
	switch ev.Kind {
	case mismoxml.StartElement:
		b.pushIndexed(ev.Name)
		b.openContainer(ev)
	case mismoxml.EndElement:
		b.closeContainer(ev)
		b.popIndexed()
	case mismoxml.Text:
		b.text(ev)
	}
	return nil
}

func (b *builder) openContainer(ev mismoxml.Event) {
	seq := attrInt(ev, "SequenceNumber")
	switch {
	case ev.Name == "PARTY" && strings.HasSuffix(ev.Path, "/PARTIES/PARTY"):
		b.instances++
		b.party = &partyState{path: ev.Path, scope: fmt.Sprintf("party#%d", b.instances)}
		b.party.borrower.SequenceNumber = seq
	case ev.Name == "COLLATERAL" && strings.HasSuffix(ev.Path, "/COLLATERALS/COLLATERAL"):
		b.instances++
		b.collateral = &collateralState{path: ev.Path, scope: fmt.Sprintf("collateral#%d", b.instances)}
		b.collateral.property.SequenceNumber = seq
	case ev.Name == "ASSET" && strings.HasSuffix(ev.Path, "/ASSETS/ASSET"):
		b.instances++
		b.asset = &assetState{path: ev.Path, scope: fmt.Sprintf("asset#%d", b.instances)}
		b.asset.asset.SequenceNumber = seq
		b.asset.reo.SequenceNumber = seq
	case ev.Name == "OWNED_PROPERTY" && b.asset != nil:
		b.asset.isREO = true
		b.asset.ownedPath = ev.Path
	case ev.Name == "FEE" && strings.HasSuffix(ev.Path, "/FEES/FEE"):
		b.instances++
		b.fee = &feeState{path: ev.Path, scope: fmt.Sprintf("fee#%d", b.instances)}
		b.fee.fee.SequenceNumber = seq
	}
}

func (b *builder) closeContainer(ev mismoxml.Event) {
	switch {
	case b.party != nil && ev.Path == b.party.path:
		b.snap.Borrowers = append(b.snap.Borrowers, b.party.resolve())
		if b.party.entityName != "" || b.party.entityType != "" {
			b.snap.Loan.VestingType = "Entity"
			if b.party.entityName != "" {
				b.snap.Loan.EntityName = b.party.entityName
			}
			if b.party.entityType != "" {
				b.snap.Loan.EntityType = b.party.entityType
			}
		}
		b.party = nil
	case b.collateral != nil && ev.Path == b.collateral.path:
		b.snap.Properties = append(b.snap.Properties, b.collateral.property)
		b.collateral = nil
	case b.asset != nil && ev.Path == b.asset.path:
		if b.asset.isREO {
			b.snap.REO = append(b.snap.REO, b.asset.reo)
		} else {
			b.snap.Assets = append(b.snap.Assets, b.asset.asset)
		}
		b.asset = nil
	case b.fee != nil && ev.Path == b.fee.path:
		b.snap.Fees = append(b.snap.Fees, b.fee.fee)
		b.fee = nil
	}
}

func (b *builder) text(ev mismoxml.Event) {
	b.textNodes++

	field, scope, ok := b.resolve(ev.Path)
	if !ok {
		b.retain(ev)
		return
	}
	b.mapped++

	// First match per path and container instance wins.
	key := scope + "|" + ev.Path
	if _, dup := b.consumed[key]; dup {
		return
	}
	b.consumed[key] = struct{}{}

	if field == "_" {
		return
	}
	b.set(scope, field, ev.Text)
}

// resolve finds the mapping entry for a text node, trying the innermost
// open container first.
func (b *builder) resolve(path string) (field, scope string, ok bool) {
	if b.asset != nil && b.asset.isREO && b.asset.ownedPath != "" {
		if rel, in := relPath(path, b.asset.ownedPath); in {
			if f, found := b.table.OwnedProperty[rel]; found {
				return f, "owned:" + b.asset.scope, true
			}
		}
	}
	if b.asset != nil {
		if rel, in := relPath(path, b.asset.path); in {
			if f, found := b.table.Asset[rel]; found {
				return f, "asset:" + b.asset.scope, true
			}
		}
	}
	if b.party != nil {
		if rel, in := relPath(path, b.party.path); in {
			if f, found := b.table.Party[rel]; found {
				return f, "party:" + b.party.scope, true
			}
		}
	}
	if b.collateral != nil {
		if rel, in := relPath(path, b.collateral.path); in {
			if f, found := b.table.Collateral[rel]; found {
				return f, "collateral:" + b.collateral.scope, true
			}
		}
	}
	if b.fee != nil {
		if rel, in := relPath(path, b.fee.path); in {
			if f, found := b.table.Fee[rel]; found {
				return f, "fee:" + b.fee.scope, true
			}
		}
	}
	if f, found := b.table.Loan[path]; found {
		return f, "loan", true
	}
	return "", "", false
}

func (b *builder) retain(ev mismoxml.Event) {
	xpath := b.indexedPath()
	sensitive := redact.SensitivePath(xpath)
	if sensitive {
		b.sensitive++
	}
	sum := sha256.Sum256([]byte(ev.Text))
	b.unmapped = append(b.unmapped, report.UnmappedNode{
		XPath:       xpath,
		ElementName: ev.Name,
		ContentHash: hex.EncodeToString(sum[:]),
		Preview:     redact.Preview(ev.Text, sensitive),
		Sensitive:   sensitive,
	})
}

func (b *builder) set(scope, field, value string) {
	switch {
	case scope == "loan":
		b.setLoan(field, value)
	case strings.HasPrefix(scope, "party:"):
		b.setParty(field, value)
	case strings.HasPrefix(scope, "collateral:"):
		b.setCollateral(field, value)
	case strings.HasPrefix(scope, "asset:"):
		b.setAsset(field, value)
	case strings.HasPrefix(scope, "owned:"):
		b.setOwned(field, value)
	case strings.HasPrefix(scope, "fee:"):
		b.setFee(field, value)
	}
}

func (b *builder) setLoan(field, value string) {
	loan := &b.snap.Loan
	switch field {
	case "amount":
		loan.Amount = parseF(value)
	case "interest_rate":
		loan.InterestRate = parseF(value)
	case "purpose":
		b.wirePurpose = value
	case "lien_priority":
		loan.LienPriority = value
	case "term_months":
		loan.TermMonths = parseI(value)
	case "amortization_type":
		loan.AmortizationType = value
	case "balloon_payment":
		loan.BalloonPayment = parseB(value)
	case "interest_only":
		loan.InterestOnly = parseB(value)
	case "ltv":
		loan.LTV = parseF(value)
	case "cash_out_amount":
		b.pendingCashOut = ptr(parseF(value))
	case "cash_out_determination":
		b.cashOutDetermined = value
	case "business_purpose":
		loan.BusinessPurpose = ptr(parseB(value))
	case "dscr":
		loan.DSCR = ptr(parseF(value))
	case "program_type":
		loan.ProgramType = value
	case "prepayment_penalty_months":
		loan.PrepaymentPenaltyMonths = ptr(parseI(value))
	}
}

func (b *builder) setParty(field, value string) {
	p := b.party
	br := &p.borrower
	switch field {
	case "first_name":
		br.FirstName = value
	case "middle_name":
		br.MiddleName = value
	case "last_name":
		br.LastName = value
	case "suffix_name":
		br.SuffixName = value
	case "email":
		br.Email = value
	case "phone":
		br.Phone = value
	case "mailing_street":
		br.MailingAddress.Street = value
	case "mailing_unit":
		br.MailingAddress.Unit = value
	case "mailing_city":
		br.MailingAddress.City = value
	case "mailing_state":
		br.MailingAddress.State = value
	case "mailing_zip":
		br.MailingAddress.Zip = value
	case "birth_date":
		br.BirthDate = value
	case "classification":
		p.classification = value
	case "citizenship":
		br.Citizenship = value
	case "credit_score":
		br.CreditScore = ptr(parseI(value))
	case "marital_status":
		br.MaritalStatus = value
	case "bankruptcy":
		decl(br).Bankruptcy = parseB(value)
	case "bankruptcy_chapter":
		decl(br).BankruptcyChapter = value
	case "delinquent_federal_debt":
		decl(br).DelinquentFederalDebt = parseB(value)
	case "outstanding_judgments":
		decl(br).OutstandingJudgments = parseB(value)
	case "party_to_lawsuit":
		decl(br).PartyToLawsuit = parseB(value)
	case "foreclosure":
		decl(br).Foreclosure = parseB(value)
	case "sex":
		demo(br).Sex = value
	case "ethnicity":
		demo(br).Ethnicity = value
	case "race":
		demo(br).Race = value
	case "refused":
		demo(br).Refused = parseB(value)
	case "party_role":
		p.partyRole = value
	case "ssn":
		br.SSN = value
	case "entity_name":
		p.entityName = value
	case "entity_type":
		p.entityType = value
	}
}

func (b *builder) setCollateral(field, value string) {
	prop := &b.collateral.property
	switch field {
	case "street":
		prop.Address.Street = value
	case "unit":
		prop.Address.Unit = value
	case "city":
		prop.Address.City = value
	case "state":
		prop.Address.State = value
	case "zip":
		prop.Address.Zip = value
	case "estimated_value":
		prop.EstimatedValue = parseF(value)
	case "purchase_price":
		prop.PurchasePrice = ptr(parseF(value))
	case "monthly_rental_income":
		prop.MonthlyRentalIncome = ptr(parseF(value))
	case "property_type":
		prop.PropertyType = value
	case "occupancy":
		prop.Occupancy = value
	case "occupancy_rate":
		// Extension values come back as decimal fractions.
		prop.OccupancyRate = ptr(parseF(value) * 100)
	case "gross_monthly_rent":
		if prop.MonthlyRentalIncome == nil {
			prop.MonthlyRentalIncome = ptr(parseF(value))
		}
	case "short_term_rental":
		prop.ShortTermRental = ptr(parseB(value))
	}
}

func (b *builder) setAsset(field, value string) {
	a := &b.asset.asset
	switch field {
	case "account_number":
		a.AccountNumber = value
	case "balance":
		a.Balance = parseF(value)
	case "account_type":
		a.AccountType = value
	case "holder_name":
		a.HolderName = value
	}
}

func (b *builder) setOwned(field, value string) {
	r := &b.asset.reo
	switch field {
	case "street":
		r.Address.Street = value
	case "unit":
		r.Address.Unit = value
	case "city":
		r.Address.City = value
	case "state":
		r.Address.State = value
	case "zip":
		r.Address.Zip = value
	case "disposition":
		r.Disposition = value
	case "lien_balance":
		r.LienBalance = ptr(parseF(value))
	case "market_value":
		r.MarketValue = parseF(value)
	case "monthly_rental_income":
		r.MonthlyRentalIncome = ptr(parseF(value))
	}
}

func (b *builder) setFee(field, value string) {
	f := &b.fee.fee
	switch field {
	case "amount":
		f.Amount = parseF(value)
	case "name":
		f.Name = value
	case "category":
		f.Category = value
	}
}

// finish resolves wire-level encodings back to canonical values.
func (b *builder) finish() *canonical.Snapshot {
	loan := &b.snap.Loan
	switch b.wirePurpose {
	case "Refinance":
		if b.cashOutDetermined == "CashOut" {
			loan.Purpose = "CashOutRefinance"
			loan.CashOutAmount = b.pendingCashOut
		} else {
			loan.Purpose = "NoCashOutRefinance"
		}
	default:
		loan.Purpose = b.wirePurpose
	}
	return &b.snap
}

func (p *partyState) resolve() canonical.Borrower {
	switch {
	case p.partyRole == "Guarantor":
		p.borrower.Role = "Guarantor"
	case p.classification == "Primary":
		p.borrower.Role = "Primary"
	default:
		p.borrower.Role = "CoBorrower"
	}
	return p.borrower
}

func (b *builder) pushIndexed(name string) {
	top := b.counters[len(b.counters)-1]
	top[name]++
	b.indexed = append(b.indexed, fmt.Sprintf("%s[%d]", name, top[name]))
	b.counters = append(b.counters, map[string]int{})
}

func (b *builder) popIndexed() {
	if len(b.indexed) > 0 {
		b.indexed = b.indexed[:len(b.indexed)-1]
		b.counters = b.counters[:len(b.counters)-1]
	}
}

func (b *builder) indexedPath() string {
	return "/" + strings.Join(b.indexed, "/")
}

func relPath(path, containerPath string) (string, bool) {
	if !strings.HasPrefix(path, containerPath+"/") {
		return "", false
	}
	return strings.TrimPrefix(path, containerPath+"/"), true
}

func attrInt(ev mismoxml.Event, name string) int {
	for _, a := range ev.Attrs {
		if a.Name.Local == name {
			if v, err := strconv.Atoi(a.Value); err == nil {
				return v
			}
		}
	}
	return 0
}

func decl(b *canonical.Borrower) *canonical.Declarations {
	if b.Declarations == nil {
		b.Declarations = &canonical.Declarations{}
	}
	return b.Declarations
}

func demo(b *canonical.Borrower) *canonical.Demographics {
	if b.Demographics == nil {
		b.Demographics = &canonical.Demographics{}
	}
	return b.Demographics
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseI(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func parseB(s string) bool {
	return s == "true" || s == "1" || s == "Y"
}

func ptr[T any](v T) *T { return &v }
