package report

// UnmappedNode records an inbound XML text node that no mapping-table
// entry consumed. The raw value never leaves the engine: only its hash
// and a redacted preview are retained, enough for audit and dedupe.
type UnmappedNode struct {
	XPath       string `json:"xpath"`
	ElementName string `json:"element_name"`
	ContentHash string `json:"content_hash"`
	Preview     string `json:"preview,omitempty"`
	Sensitive   bool   `json:"sensitive"`
}
