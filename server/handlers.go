package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/synqronlabs/dmarcpolicy/dmarc"
	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
)

// maxDomainLength is the longest presentation-format domain name.
const maxDomainLength = 253

// PolicyResponse is the body of GET /v1/policy/{domain}.
type PolicyResponse struct {
	QueryID      string       `json:"query_id"`
	Domain       string       `json:"domain"`
	RecordDomain string       `json:"record_domain,omitempty"`
	Found        bool         `json:"found"`
	Policy       dmarc.Policy `json:"policy,omitempty"`
	Record       *RecordView  `json:"record,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// RecordView is the JSON form of a dmarc.Record.
type RecordView struct {
	Text                    string   `json:"text"`
	Policy                  string   `json:"p,omitempty"`
	SubdomainPolicy         string   `json:"sp,omitempty"`
	AggregateReportAddress  []string `json:"rua,omitempty"`
	FailureReportAddress    []string `json:"ruf,omitempty"`
	ADKIM                   string   `json:"adkim,omitempty"`
	ASPF                    string   `json:"aspf,omitempty"`
	ReportingInterval       *uint64  `json:"ri,omitempty"`
	FailureReportingOptions []string `json:"fo,omitempty"`
	ReportingFormat         []string `json:"rf,omitempty"`
	Percentage              *int     `json:"pct,omitempty"`
}

func newRecordView(r *dmarc.Record) *RecordView {
	if r == nil {
		return nil
	}
	uris := func(l []dmarc.URI) []string {
		var s []string
		for _, u := range l {
			s = append(s, u.String())
		}
		return s
	}
	return &RecordView{
		Text:                    r.String(),
		Policy:                  string(r.Policy),
		SubdomainPolicy:         string(r.SubdomainPolicy),
		AggregateReportAddress:  uris(r.AggregateReportAddresses),
		FailureReportAddress:    uris(r.FailureReportAddresses),
		ADKIM:                   string(r.ADKIM),
		ASPF:                    string(r.ASPF),
		ReportingInterval:       r.AggregateReportingInterval,
		FailureReportingOptions: r.FailureReportingOptions,
		ReportingFormat:         r.ReportingFormat,
		Percentage:              r.Percentage,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	resp := PolicyResponse{
		QueryID: QueryID(r.Context()),
		Domain:  strings.TrimSpace(chi.URLParam(r, "domain")),
	}
	if resp.Domain == "" || len(resp.Domain) > maxDomainLength {
		resp.Error = "missing or invalid domain"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.LookupTimeout)
	defer cancel()

	var rules *publicsuffix.RuleSet
	if s.config.Rules != nil {
		rules = s.config.Rules.Rules()
	}
	res, err := dmarc.Resolve(ctx, s.config.Resolver, rules, resp.Domain)
	if s.config.Metrics != nil {
		s.config.Metrics.Observe(res, err)
	}

	resp.Domain = res.Domain
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.config.Logger.Warn("policy resolution failed",
				slog.String("query_id", resp.QueryID),
				slog.String("domain", res.Domain),
				slog.Any("error", err))
		}
		resp.Error = err.Error()
		writeJSON(w, status, resp)
		return
	}

	resp.RecordDomain = res.RecordDomain
	resp.Found = res.Found
	resp.Policy = res.Policy
	resp.Record = newRecordView(res.Record)
	writeJSON(w, http.StatusOK, resp)
}

// errorStatus maps a resolution error to an HTTP status: 422 for errors in
// the published records, 502 for lookup failures.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, dmarc.ErrSyntax), errors.Is(err, dmarc.ErrMultipleRecords):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dmarc.ErrDNS):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
