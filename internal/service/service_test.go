package service

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanglide/mismo"
	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/report"
)

func newTestRouter(t *testing.T, opts ...mismo.Option) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append(opts, mismo.WithLogger(logger), mismo.WithActor("test"))
	engine, err := mismo.New(opts...)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	svc := New(engine, logger, NewMetrics(reg))
	return svc.Router(reg)
}

func validSnapshot() *canonical.Snapshot {
	price := 355000.0
	rent := 2400.0
	return &canonical.Snapshot{
		Loan: canonical.Loan{
			Amount: 300000, InterestRate: 6.875, TermMonths: 360,
			Purpose: "Purchase", AmortizationType: "Fixed", LienPriority: "FirstLien",
		},
		Borrowers: []canonical.Borrower{{
			Role: "Primary", FirstName: "Dana", LastName: "Okafor",
			BirthDate: "1982-06-09",
		}},
		Properties: []canonical.Property{{
			Address:             canonical.Address{Street: "900 Lamar Blvd", City: "Austin", State: "TX", Zip: "78704"},
			Occupancy:           "Investment",
			EstimatedValue:      375000,
			PurchasePrice:       &price,
			MonthlyRentalIncome: &rent,
		}},
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string   `json:"status"`
		Packs  []string `json:"packs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, body.Packs, mismo.PackGeneric)
}

func TestGenerateOK(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/generate", map[string]any{"snapshot": validSnapshot()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		XML         []byte        `json:"xml"`
		ContentHash string        `json:"content_hash"`
		Report      report.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, string(body.XML), "<MESSAGE")
	assert.Len(t, body.ContentHash, 64)
	assert.Equal(t, report.StatusPass, body.Report.Status)
}

func TestGenerateBlocked(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/generate", map[string]any{
		"snapshot": &canonical.Snapshot{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		XML    []byte        `json:"xml"`
		Report report.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.XML, "blocked responses carry no document")
	assert.Equal(t, report.StatusFail, body.Report.Status)
	assert.Greater(t, body.Report.ErrorCount, 0)
}

func TestGenerateBestEffort(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/generate", map[string]any{
		"snapshot":    &canonical.Snapshot{Loan: canonical.Loan{Purpose: "Purchase"}},
		"best_effort": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		XML        []byte `json:"xml"`
		BestEffort bool   `json:"best_effort"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.BestEffort)
	assert.Contains(t, string(body.XML), "<MESSAGE")
}

func TestGenerateRejectsUnknownFields(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/generate", map[string]any{
		"snapshot": validSnapshot(),
		"surprise": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateRequiresInput(t *testing.T) {
	h := newTestRouter(t)
	rec := postJSON(t, h, "/v1/validate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateDocument(t *testing.T) {
	h := newTestRouter(t)

	gen := postJSON(t, h, "/v1/generate", map[string]any{"snapshot": validSnapshot()})
	require.Equal(t, http.StatusOK, gen.Code)
	var genBody struct {
		XML []byte `json:"xml"`
	}
	require.NoError(t, json.Unmarshal(gen.Body.Bytes(), &genBody))

	rec := postJSON(t, h, "/v1/validate", map[string]any{"document": genBody.XML})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status report.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, report.StatusPass, body.Status)
}

func TestValidateURLTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := newTestRouter(t)
	rec := postJSON(t, h, "/v1/validate", map[string]any{"url": srv.URL + "/doc.xml"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestImportRoundTrip(t *testing.T) {
	h := newTestRouter(t)

	gen := postJSON(t, h, "/v1/generate", map[string]any{"snapshot": validSnapshot()})
	require.Equal(t, http.StatusOK, gen.Code)
	var genBody struct {
		XML []byte `json:"xml"`
	}
	require.NoError(t, json.Unmarshal(gen.Body.Bytes(), &genBody))

	rec := postJSON(t, h, "/v1/import", map[string]any{"document": genBody.XML})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Snapshot      *canonical.Snapshot `json:"snapshot"`
		InputHash     string              `json:"input_hash"`
		MappedCount   int                 `json:"mapped_count"`
		TextNodeCount int                 `json:"text_node_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Snapshot)
	assert.Equal(t, 300000.0, body.Snapshot.Loan.Amount)
	assert.Len(t, body.InputHash, 64)
	assert.Greater(t, body.MappedCount, 0)
}

func TestImportBlocked(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/import", map[string]any{
		"document": []byte("<LOAN_FILE/>"),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Snapshot  *canonical.Snapshot `json:"snapshot"`
		InputHash string              `json:"input_hash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Snapshot)
	assert.Len(t, body.InputHash, 64, "audit hash is recorded even when blocked")
}

func TestExtensionEndpoint(t *testing.T) {
	h := newTestRouter(t)

	dscr := 1.25
	snap := &canonical.Snapshot{Loan: canonical.Loan{DSCR: &dscr, ProgramType: "DSCR"}}
	rec := postJSON(t, h, "/v1/extension", map[string]any{
		"snapshot": snap, "container": "LOAN",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Fragment []byte `json:"fragment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, string(body.Fragment), "lg:BusinessLoanDetail")

	rec = postJSON(t, h, "/v1/extension", map[string]any{
		"snapshot": snap, "container": "DEAL",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegressionEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := postJSON(t, h, "/v1/regression", map[string]any{"cases": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Total  int `json:"total"`
		Passed int `json:"passed"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Total)
	assert.Equal(t, 4, body.Passed)
	assert.Zero(t, body.Failed)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)

	// Drive one operation so the counter exists.
	postJSON(t, h, "/v1/generate", map[string]any{"snapshot": validSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mismod_operations_total")
	assert.Contains(t, rec.Body.String(), `operation="generate"`)
}
