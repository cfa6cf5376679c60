package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/loanglide/mismo"
	"github.com/loanglide/mismo/canonical"
	"github.com/loanglide/mismo/internal/fetch"
	"github.com/loanglide/mismo/report"
)

type generateRequest struct {
	Snapshot   *canonical.Snapshot `json:"snapshot"`
	PackID     string              `json:"pack_id,omitempty"`
	BestEffort bool                `json:"best_effort,omitempty"`
}

type generateResponse struct {
	XML         []byte        `json:"xml,omitempty"`
	ContentHash string        `json:"content_hash,omitempty"`
	ByteSize    int           `json:"byte_size,omitempty"`
	BestEffort  bool          `json:"best_effort,omitempty"`
	Report      report.Report `json:"report"`
}

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	defer s.observe("generate", time.Now())

	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Snapshot == nil {
		s.fail(w, "generate", http.StatusBadRequest, errors.New("snapshot is required"))
		return
	}

	res, err := s.engine.GenerateXML(req.Snapshot, mismo.GenerateOptions{
		PackID:     req.PackID,
		BestEffort: req.BestEffort,
	})
	switch {
	case errors.Is(err, mismo.ErrGenerationBlocked):
		s.count("generate", "blocked")
		writeJSON(w, http.StatusUnprocessableEntity, generateResponse{Report: res.Report})
		return
	case err != nil:
		s.fail(w, "generate", http.StatusBadRequest, err)
		return
	}

	s.count("generate", string(res.Report.Status))
	s.metrics.DocumentBytes.Observe(float64(res.ByteSize))
	writeJSON(w, http.StatusOK, generateResponse{
		XML:         res.XML,
		ContentHash: res.ContentHash,
		ByteSize:    res.ByteSize,
		BestEffort:  res.BestEffort,
		Report:      res.Report,
	})
}

type validateRequest struct {
	Document []byte `json:"document,omitempty"`
	URL      string `json:"url,omitempty"`
	PackID   string `json:"pack_id,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type validateResponse struct {
	Status report.Status `json:"status"`
	Report report.Report `json:"report"`
}

func (s *Service) handleValidate(w http.ResponseWriter, r *http.Request) {
	defer s.observe("validate", time.Now())

	var req validateRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts := mismo.ValidateOptions{PackID: req.PackID, Mode: mismo.ValidationMode(req.Mode)}
	var (
		res *mismo.ValidateResult
		err error
	)
	switch {
	case req.URL != "":
		res, err = s.engine.ValidateURL(r.Context(), req.URL, opts)
	case len(req.Document) > 0:
		s.metrics.DocumentBytes.Observe(float64(len(req.Document)))
		res, err = s.engine.ValidateXML(req.Document, opts)
	default:
		s.fail(w, "validate", http.StatusBadRequest, errors.New("document or url is required"))
		return
	}
	if err != nil {
		var transport *fetch.TransportError
		if errors.As(err, &transport) {
			s.fail(w, "validate", http.StatusBadGateway, err)
			return
		}
		s.fail(w, "validate", http.StatusBadRequest, err)
		return
	}

	s.count("validate", string(res.Status))
	writeJSON(w, http.StatusOK, validateResponse{Status: res.Status, Report: res.Report})
}

type importRequest struct {
	Document []byte `json:"document,omitempty"`
	URL      string `json:"url,omitempty"`
	PackID   string `json:"pack_id,omitempty"`
	RawOnly  bool   `json:"raw_only,omitempty"`
}

type importResponse struct {
	Snapshot      *canonical.Snapshot   `json:"snapshot,omitempty"`
	Unmapped      []report.UnmappedNode `json:"unmapped,omitempty"`
	Report        report.Report         `json:"report"`
	InputHash     string                `json:"input_hash"`
	ByteSize      int                   `json:"byte_size"`
	MappedCount   int                   `json:"mapped_count"`
	TextNodeCount int                   `json:"text_node_count"`
}

func (s *Service) handleImport(w http.ResponseWriter, r *http.Request) {
	defer s.observe("import", time.Now())

	var req importRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts := mismo.ImportOptions{PackID: req.PackID, RawOnly: req.RawOnly}
	var (
		res *mismo.ImportResult
		err error
	)
	switch {
	case req.URL != "":
		res, err = s.engine.ImportURL(r.Context(), req.URL, opts)
	case len(req.Document) > 0:
		s.metrics.DocumentBytes.Observe(float64(len(req.Document)))
		res, err = s.engine.ImportXML(req.Document, opts)
	default:
		s.fail(w, "import", http.StatusBadRequest, errors.New("document or url is required"))
		return
	}
	switch {
	case errors.Is(err, mismo.ErrImportBlocked):
		s.count("import", "blocked")
		writeJSON(w, http.StatusUnprocessableEntity, toImportResponse(res))
		return
	case err != nil:
		var transport *fetch.TransportError
		if errors.As(err, &transport) {
			s.fail(w, "import", http.StatusBadGateway, err)
			return
		}
		s.fail(w, "import", http.StatusBadRequest, err)
		return
	}

	s.count("import", string(res.Report.Status))
	writeJSON(w, http.StatusOK, toImportResponse(res))
}

func toImportResponse(res *mismo.ImportResult) importResponse {
	return importResponse{
		Snapshot:      res.Snapshot,
		Unmapped:      res.Unmapped,
		Report:        res.Report,
		InputHash:     res.InputHash,
		ByteSize:      res.ByteSize,
		MappedCount:   res.MappedCount,
		TextNodeCount: res.TextNodeCount,
	}
}

type extensionRequest struct {
	Snapshot  *canonical.Snapshot `json:"snapshot"`
	Container string              `json:"container"`
}

type extensionResponse struct {
	Fragment []byte `json:"fragment,omitempty"`
}

func (s *Service) handleExtension(w http.ResponseWriter, r *http.Request) {
	defer s.observe("extension", time.Now())

	var req extensionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Snapshot == nil || req.Container == "" {
		s.fail(w, "extension", http.StatusBadRequest,
			errors.New("snapshot and container are required"))
		return
	}

	frag, err := s.engine.BuildExtension(req.Snapshot, req.Container)
	if err != nil {
		s.fail(w, "extension", http.StatusBadRequest, err)
		return
	}

	s.count("extension", "ok")
	writeJSON(w, http.StatusOK, extensionResponse{Fragment: frag})
}

type regressionRequest struct {
	PackID string `json:"pack_id,omitempty"`
	Cases  int    `json:"cases,omitempty"`
}

func (s *Service) handleRegression(w http.ResponseWriter, r *http.Request) {
	defer s.observe("regression", time.Now())

	var req regressionRequest
	if !s.decode(w, r, &req) {
		return
	}

	summary, err := s.engine.RunRegression(r.Context(), mismo.RegressionOptions{
		PackID: req.PackID,
		Cases:  req.Cases,
	})
	if err != nil && summary == nil {
		s.fail(w, "regression", http.StatusBadRequest, err)
		return
	}

	if summary.Failed > 0 {
		s.count("regression", "failed")
	} else {
		s.count("regression", "passed")
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Service) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Service) fail(w http.ResponseWriter, op string, status int, err error) {
	s.count(op, "error")
	s.logger.Warn("request failed", "operation", op, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Service) count(op, status string) {
	s.metrics.Operations.WithLabelValues(op, status).Inc()
}

func (s *Service) observe(op string, start time.Time) {
	s.metrics.OperationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
