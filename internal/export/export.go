// Package export serializes canonical snapshots to MISMO 3.4 XML.
// Output is a pure function of the snapshot and schema pack: namespace
// order, container order, and repeating-element order are all fixed, so
// identical inputs produce identical bytes and an identical content
// hash. Wall-clock time and random identifiers never enter the output.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/extension"
	"github.com/loanglide/mismo/internal/ldd"
	"github.com/loanglide/mismo/internal/mismoxml"
	"github.com/loanglide/mismo/internal/schemapack"
	"github.com/loanglide/mismo/internal/sequence"
)

// Exporter builds MISMO documents. It holds only the two read-only
// registries and is safe for concurrent use.
type Exporter struct {
	ldd *ldd.Engine
	ext *extension.Registry
}

// New returns an exporter over the given registries.
func New(lddEngine *ldd.Engine, ext *extension.Registry) *Exporter {
	return &Exporter{ldd: lddEngine, ext: ext}
}

// Result is the serialized document with its content digest.
type Result struct {
	XML         []byte
	ContentHash string
	ByteSize    int
}

// Export serializes the snapshot for the schema pack.
func (e *Exporter) Export(snap *canonical.Snapshot, pack schemapack.Pack) (*Result, error) {
	norm := e.ldd.Normalize(snap)

	borrowers := sequence.Borrowers(norm.Borrowers)
	properties := sequence.Properties(norm.Properties)
	reo := sequence.REO(norm.REO)
	assets := sequence.Assets(norm.Assets)
	fees := sequence.Fees(norm.Fees)

	root := mismoxml.Element(pack.RootElement)
	for _, ns := range pack.RequiredNamespaces {
		name := "xmlns"
		if ns.Prefix != "" {
			name += ":" + ns.Prefix
		}
		root.Attr(name, ns.URI)
	}
	root.Attr("MISMOVersionID", pack.VersionID())

	root.Add(
		mismoxml.Element("ABOUT_VERSIONS",
			mismoxml.Element("ABOUT_VERSION",
				mismoxml.Leaf("DataVersionIdentifier", pack.LDDIdentifier))))

	deal := mismoxml.Element("DEAL")
	deal.Add(e.assetsNode(assets, reo))
	collaterals, err := e.collateralsNode(properties)
	if err != nil {
		return nil, err
	}
	deal.Add(collaterals)
	loanNode, err := e.loanNode(norm.Loan, fees)
	if err != nil {
		return nil, err
	}
	deal.Add(loanNode)
	partiesNode, err := e.partiesNode(norm.Loan, borrowers)
	if err != nil {
		return nil, err
	}
	deal.Add(partiesNode)
	deal.Add(e.relationshipsNode(borrowers))
	orderChildren(deal, dealChildOrder)

	root.Add(
		mismoxml.Element("DEAL_SETS",
			mismoxml.Element("DEAL_SET",
				mismoxml.Element("DEALS", deal))))

	doc := mismoxml.Marshal(root)
	sum := sha256.Sum256(doc)
	return &Result{
		XML:         doc,
		ContentHash: hex.EncodeToString(sum[:]),
		ByteSize:    len(doc),
	}, nil
}

// BuildExtensionFragment serializes the EXTENSION block for one parent
// container, or nil when no registered field carries a value.
func (e *Exporter) BuildExtensionFragment(snap *canonical.Snapshot, container string) ([]byte, error) {
	values := extension.Collect(snap)[container]
	if container == "SUBJECT_PROPERTY" && len(snap.Properties) > 0 {
		subject := sequence.Properties(snap.Properties)[0]
		values = extension.CollectProperty(subject)
	}
	node, err := e.extensionNode(values, container)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return mismoxml.MarshalFragment(node), nil
}

// dealChildOrder is the canonical DEAL container order. Containers not
// listed fall back to alphabetical order after the canonical ones.
var dealChildOrder = []string{
	"ASSETS",
	"COLLATERALS",
	"LIABILITIES",
	"LOANS",
	"PARTIES",
	"RELATIONSHIPS",
	"SERVICES",
}

func orderChildren(n *mismoxml.Node, order []string) {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	pos := func(name string) (int, bool) {
		r, ok := rank[name]
		return r, ok
	}

	children := n.Children
	sorted := make([]*mismoxml.Node, 0, len(children))
	for _, name := range order {
		for _, c := range children {
			if c.Name == name {
				sorted = append(sorted, c)
			}
		}
	}
	var rest []*mismoxml.Node
	for _, c := range children {
		if _, listed := pos(c.Name); !listed {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	n.Children = append(sorted, rest...)
}

func (e *Exporter) assetsNode(assets []canonical.Asset, reo []canonical.REOProperty) *mismoxml.Node {
	if len(assets) == 0 && len(reo) == 0 {
		return nil
	}
	node := mismoxml.Element("ASSETS")

	for _, a := range assets {
		asset := mismoxml.Element("ASSET").
			Attr("SequenceNumber", strconv.Itoa(a.SequenceNumber)).
			Attr("xlink:label", a.Label)
		detail := mismoxml.Element("ASSET_DETAIL")
		if a.AccountNumber != "" {
			detail.Add(mismoxml.Leaf("AssetAccountIdentifier", a.AccountNumber))
		}
		detail.Add(mismoxml.Leaf("AssetCashOrMarketValueAmount", amount(a.Balance)))
		detail.Add(mismoxml.Leaf("AssetType", a.AccountType))
		asset.Add(detail)
		if a.HolderName != "" {
			asset.Add(mismoxml.Element("ASSET_HOLDER",
				mismoxml.Element("NAME", mismoxml.Leaf("FullName", a.HolderName))))
		}
		node.Add(asset)
	}

	for _, r := range reo {
		owned := mismoxml.Element("OWNED_PROPERTY")
		owned.Add(addressNode(r.Address))
		detail := mismoxml.Element("OWNED_PROPERTY_DETAIL")
		if r.Disposition != "" {
			detail.Add(mismoxml.Leaf("OwnedPropertyDispositionStatusType", r.Disposition))
		}
		if r.LienBalance != nil {
			detail.Add(mismoxml.Leaf("OwnedPropertyLienUPBAmount", amount(*r.LienBalance)))
		}
		detail.Add(mismoxml.Leaf("OwnedPropertyMarketValueAmount", amount(r.MarketValue)))
		if r.MonthlyRentalIncome != nil {
			detail.Add(mismoxml.Leaf("OwnedPropertyRentalIncomeGrossAmount",
				amount(*r.MonthlyRentalIncome)))
		}
		owned.Add(detail)

		node.Add(mismoxml.Element("ASSET").
			Attr("SequenceNumber", strconv.Itoa(r.SequenceNumber)).
			Attr("xlink:label", r.Label).
			Add(owned))
	}
	return node
}

func (e *Exporter) collateralsNode(properties []canonical.Property) (*mismoxml.Node, error) {
	if len(properties) == 0 {
		return nil, nil
	}
	node := mismoxml.Element("COLLATERALS")
	for _, p := range properties {
		subject := mismoxml.Element("SUBJECT_PROPERTY")
		subject.Add(addressNode(p.Address))

		detail := mismoxml.Element("PROPERTY_DETAIL")
		detail.Add(mismoxml.Leaf("PropertyEstimatedValueAmount", amount(p.EstimatedValue)))
		if p.PurchasePrice != nil {
			detail.Add(mismoxml.Leaf("PropertyPurchasePriceAmount", amount(*p.PurchasePrice)))
		}
		if p.MonthlyRentalIncome != nil {
			detail.Add(mismoxml.Leaf("PropertyRentalIncomeGrossAmount",
				amount(*p.MonthlyRentalIncome)))
		}
		if p.PropertyType != "" {
			detail.Add(mismoxml.Leaf("PropertyType", p.PropertyType))
		}
		if p.Occupancy != "" {
			detail.Add(mismoxml.Leaf("PropertyUsageType", p.Occupancy))
		}
		subject.Add(detail)

		ext, err := e.extensionNode(extension.CollectProperty(p), "SUBJECT_PROPERTY")
		if err != nil {
			return nil, err
		}
		subject.Add(ext)

		node.Add(mismoxml.Element("COLLATERAL").
			Attr("SequenceNumber", strconv.Itoa(p.SequenceNumber)).
			Attr("xlink:label", p.Label).
			Add(subject))
	}
	return node, nil
}

func (e *Exporter) loanNode(loan canonical.Loan, fees []canonical.Fee) (*mismoxml.Node, error) {
	node := mismoxml.Element("LOAN").
		Attr("xlink:label", "LOAN_1").
		Attr("LoanRoleType", "SubjectLoan")

	if loan.TermMonths > 0 || loan.AmortizationType != "" {
		rule := mismoxml.Element("AMORTIZATION_RULE")
		if loan.TermMonths > 0 {
			rule.Add(mismoxml.Leaf("LoanAmortizationPeriodCount", strconv.Itoa(loan.TermMonths)))
		}
		if loan.AmortizationType != "" {
			rule.Add(mismoxml.Leaf("LoanAmortizationType", loan.AmortizationType))
		}
		node.Add(mismoxml.Element("AMORTIZATION", rule))
	}

	if len(fees) > 0 {
		feesNode := mismoxml.Element("FEES")
		for _, f := range fees {
			detail := mismoxml.Element("FEE_DETAIL")
			detail.Add(mismoxml.Leaf("FeeActualTotalAmount", amount(f.Amount)))
			detail.Add(mismoxml.Leaf("FeeDescription", f.Name))
			detail.Add(mismoxml.Leaf("IntegratedDisclosureSectionType", f.Category))
			feesNode.Add(mismoxml.Element("FEE").
				Attr("SequenceNumber", strconv.Itoa(f.SequenceNumber)).
				Attr("xlink:label", f.Label).
				Add(detail))
		}
		node.Add(mismoxml.Element("FEE_INFORMATION", feesNode))
	}

	detail := mismoxml.Element("LOAN_DETAIL")
	detail.Add(mismoxml.Leaf("BalloonIndicator", boolean(loan.BalloonPayment)))
	detail.Add(mismoxml.Leaf("InterestOnlyIndicator", boolean(loan.InterestOnly)))
	node.Add(detail)

	if loan.LTV > 0 {
		node.Add(mismoxml.Element("LTV",
			mismoxml.Leaf("LTVRatioPercent", percent(loan.LTV))))
	}

	if refi := refinanceNode(loan); refi != nil {
		node.Add(refi)
	}

	terms := mismoxml.Element("TERMS_OF_LOAN")
	if loan.LienPriority != "" {
		terms.Add(mismoxml.Leaf("LienPriorityType", loan.LienPriority))
	}
	terms.Add(mismoxml.Leaf("LoanPurposeType", wirePurpose(loan.Purpose)))
	terms.Add(mismoxml.Leaf("NoteAmount", amount(loan.Amount)))
	terms.Add(mismoxml.Leaf("NoteRatePercent", percent(loan.InterestRate)))
	node.Add(terms)

	ext, err := e.extensionNode(loanExtensionValues(loan), "LOAN")
	if err != nil {
		return nil, err
	}
	node.Add(ext)

	return mismoxml.Element("LOANS", node), nil
}

func refinanceNode(loan canonical.Loan) *mismoxml.Node {
	switch loan.Purpose {
	case "CashOutRefinance":
		refi := mismoxml.Element("REFINANCE")
		if loan.CashOutAmount != nil {
			refi.Add(mismoxml.Leaf("RefinanceCashOutAmount", amount(*loan.CashOutAmount)))
		}
		refi.Add(mismoxml.Leaf("RefinanceCashOutDeterminationType", "CashOut"))
		return refi
	case "NoCashOutRefinance", "Refinance":
		return mismoxml.Element("REFINANCE",
			mismoxml.Leaf("RefinanceCashOutDeterminationType", "NoCashOut"))
	}
	return nil
}

// wirePurpose folds the canonical purpose onto the LDD LoanPurposeType
// enumeration; the cash-out split travels in REFINANCE.
func wirePurpose(purpose string) string {
	switch purpose {
	case "CashOutRefinance", "NoCashOutRefinance":
		return "Refinance"
	default:
		return purpose
	}
}

func loanExtensionValues(loan canonical.Loan) map[string]string {
	snap := canonical.Snapshot{Loan: loan}
	return extension.Collect(&snap)["LOAN"]
}

func (e *Exporter) partiesNode(loan canonical.Loan, borrowers []canonical.Borrower) (*mismoxml.Node, error) {
	if len(borrowers) == 0 {
		return nil, nil
	}
	node := mismoxml.Element("PARTIES")
	for i, b := range borrowers {
		party := mismoxml.Element("PARTY").
			Attr("SequenceNumber", strconv.Itoa(b.SequenceNumber)).
			Attr("xlink:label", b.Label)

		individual := mismoxml.Element("INDIVIDUAL")
		if b.Email != "" || b.Phone != "" {
			points := mismoxml.Element("CONTACT_POINTS")
			if b.Email != "" {
				points.Add(mismoxml.Element("CONTACT_POINT",
					mismoxml.Element("CONTACT_POINT_EMAIL",
						mismoxml.Leaf("ContactPointEmailValue", b.Email))))
			}
			if b.Phone != "" {
				points.Add(mismoxml.Element("CONTACT_POINT",
					mismoxml.Element("CONTACT_POINT_TELEPHONE",
						mismoxml.Leaf("ContactPointTelephoneValue", b.Phone))))
			}
			individual.Add(points)
		}
		name := mismoxml.Element("NAME")
		if b.FirstName != "" {
			name.Add(mismoxml.Leaf("FirstName", b.FirstName))
		}
		if b.LastName != "" {
			name.Add(mismoxml.Leaf("LastName", b.LastName))
		}
		if b.MiddleName != "" {
			name.Add(mismoxml.Leaf("MiddleName", b.MiddleName))
		}
		if b.SuffixName != "" {
			name.Add(mismoxml.Leaf("SuffixName", b.SuffixName))
		}
		individual.Add(name)
		party.Add(individual)

		if !b.MailingAddress.IsZero() {
			party.Add(mismoxml.Element("ADDRESSES", addressNode(b.MailingAddress)))
		}

		party.Add(e.roleNode(b))

		if b.SSN != "" {
			party.Add(mismoxml.Element("TAXPAYER_IDENTIFIERS",
				mismoxml.Element("TAXPAYER_IDENTIFIER",
					mismoxml.Leaf("TaxpayerIdentifierType", "SocialSecurityNumber"),
					mismoxml.Leaf("TaxpayerIdentifierValue", b.SSN))))
		}

		// Entity vesting travels on the primary party.
		if i == 0 && loan.VestingType == "Entity" {
			values := map[string]string{}
			if loan.EntityName != "" {
				values["entity_name"] = loan.EntityName
			}
			if loan.EntityType != "" {
				values["entity_type"] = loan.EntityType
			}
			ext, err := e.extensionNode(values, "PARTY")
			if err != nil {
				return nil, err
			}
			party.Add(ext)
		}

		node.Add(party)
	}
	return node, nil
}

func (e *Exporter) roleNode(b canonical.Borrower) *mismoxml.Node {
	borrower := mismoxml.Element("BORROWER")

	detail := mismoxml.Element("BORROWER_DETAIL")
	if b.BirthDate != "" {
		detail.Add(mismoxml.Leaf("BorrowerBirthDate", b.BirthDate))
	}
	detail.Add(mismoxml.Leaf("BorrowerClassificationType", classification(b)))
	if b.Citizenship != "" {
		detail.Add(mismoxml.Leaf("CitizenshipResidencyType", b.Citizenship))
	}
	if b.CreditScore != nil {
		detail.Add(mismoxml.Leaf("CreditScoreValue", strconv.Itoa(*b.CreditScore)))
	}
	if b.MaritalStatus != "" {
		detail.Add(mismoxml.Leaf("MaritalStatusType", b.MaritalStatus))
	}
	borrower.Add(detail)

	if d := b.Declarations; d != nil {
		decl := mismoxml.Element("DECLARATION_DETAIL")
		if d.BankruptcyChapter != "" {
			decl.Add(mismoxml.Leaf("BankruptcyChapterType", d.BankruptcyChapter))
		}
		decl.Add(mismoxml.Leaf("BankruptcyIndicator", boolean(d.Bankruptcy)))
		decl.Add(mismoxml.Leaf("DelinquentOnFederalDebtIndicator", boolean(d.DelinquentFederalDebt)))
		decl.Add(mismoxml.Leaf("OutstandingJudgmentsIndicator", boolean(d.OutstandingJudgments)))
		decl.Add(mismoxml.Leaf("PartyToLawsuitIndicator", boolean(d.PartyToLawsuit)))
		decl.Add(mismoxml.Leaf("PriorPropertyForeclosureCompletedIndicator", boolean(d.Foreclosure)))
		borrower.Add(mismoxml.Element("DECLARATION", decl))
	}

	if m := b.Demographics; m != nil {
		gm := mismoxml.Element("GOVERNMENT_MONITORING_DETAIL")
		if m.Sex != "" {
			gm.Add(mismoxml.Leaf("GenderType", m.Sex))
		}
		if m.Ethnicity != "" {
			gm.Add(mismoxml.Leaf("HMDAEthnicityType", m.Ethnicity))
		}
		if m.Race != "" {
			gm.Add(mismoxml.Leaf("HMDARaceType", m.Race))
		}
		gm.Add(mismoxml.Leaf("HMDARefusalIndicator", boolean(m.Refused)))
		borrower.Add(mismoxml.Element("GOVERNMENT_MONITORING", gm))
	}

	// Guarantors carry their role explicitly; everyone else is a
	// Borrower distinguished by classification.
	partyRole := "Borrower"
	if b.Role == "Guarantor" {
		partyRole = "Guarantor"
	}
	role := mismoxml.Element("ROLE",
		borrower,
		mismoxml.Element("ROLE_DETAIL", mismoxml.Leaf("PartyRoleType", partyRole)))
	return mismoxml.Element("ROLES", role)
}

func classification(b canonical.Borrower) string {
	if b.Role == "Primary" {
		return "Primary"
	}
	return "Secondary"
}

func (e *Exporter) relationshipsNode(borrowers []canonical.Borrower) *mismoxml.Node {
	if len(borrowers) == 0 {
		return nil
	}
	node := mismoxml.Element("RELATIONSHIPS")
	for i, b := range borrowers {
		node.Add(mismoxml.Element("RELATIONSHIP").
			Attr("SequenceNumber", strconv.Itoa(i+1)).
			Attr("xlink:from", b.Label).
			Attr("xlink:to", "LOAN_1").
			Attr("xlink:arcrole", "urn:fdc:mismo.org:2009:residential/PARTY_IsAssociatedWith_LOAN"))
	}
	return node
}

// extensionNode wraps registered vendor fields in EXTENSION/OTHER. The
// vendor namespace is declared on OTHER only.
func (e *Exporter) extensionNode(values map[string]string, container string) (*mismoxml.Node, error) {
	frag, err := e.ext.Build(values, container)
	if err != nil {
		return nil, fmt.Errorf("build %s extension: %w", container, err)
	}
	if frag.Empty() {
		return nil, nil
	}

	other := mismoxml.Element("OTHER").
		Attr("xmlns:"+extension.VendorNamespacePrefix, extension.VendorNamespaceURI)
	for _, el := range frag.Elements {
		wrapper := mismoxml.Element(extension.VendorNamespacePrefix + ":" + el.Wrapper)
		for _, f := range el.Fields {
			wrapper.Add(mismoxml.Leaf(extension.VendorNamespacePrefix+":"+f.Name, f.Value))
		}
		other.Add(wrapper)
	}
	return mismoxml.Element("EXTENSION", other), nil
}

func addressNode(a canonical.Address) *mismoxml.Node {
	node := mismoxml.Element("ADDRESS")
	if a.Street != "" {
		node.Add(mismoxml.Leaf("AddressLineText", a.Street))
	}
	if a.Unit != "" {
		node.Add(mismoxml.Leaf("AddressUnitIdentifier", a.Unit))
	}
	if a.City != "" {
		node.Add(mismoxml.Leaf("CityName", a.City))
	}
	if a.Zip != "" {
		node.Add(mismoxml.Leaf("PostalCode", a.Zip))
	}
	if a.State != "" {
		node.Add(mismoxml.Leaf("StateCode", a.State))
	}
	return node
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func boolean(v bool) string {
	return strconv.FormatBool(v)
}
