package api

import (
	"net/http"
	"slices"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/stats"
)

// ReportsHandler serves the store-wide read endpoints.
type ReportsHandler struct {
	deps ReportDependencies
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps ReportDependencies) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

type studentAverage struct {
	Name    string `json:"name"`
	Average string `json:"average"`
}

type averagesResponse struct {
	Subject  string           `json:"subject,omitempty"`
	Averages []studentAverage `json:"averages"`
}

type statisticsResponse struct {
	Subject string `json:"subject,omitempty"`
	Count   int    `json:"count"`
	Mean    string `json:"mean"`
	Median  string `json:"median"`
	Mode    string `json:"mode"`
	StdDev  string `json:"std_dev"`
	Min     string `json:"min"`
	Max     string `json:"max"`
}

func newStatisticsResponse(subject string, s stats.Summary) statisticsResponse {
	return statisticsResponse{
		Subject: subject,
		Count:   s.Count,
		Mean:    model.FormatValue(s.Mean),
		Median:  model.FormatValue(s.Median),
		Mode:    model.FormatValue(s.Mode),
		StdDev:  model.FormatValue(s.StdDev),
		Min:     model.FormatValue(s.Min),
		Max:     model.FormatValue(s.Max),
	}
}

// HandleAverages handles GET /averages?subject=S. Entries are sorted by name.
func (h *ReportsHandler) HandleAverages(w http.ResponseWriter, r *http.Request) {
	subject := model.NormalizeSubject(r.URL.Query().Get("subject"))
	all, err := h.deps.AllAverages(r.Context(), subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := averagesResponse{Subject: subject, Averages: make([]studentAverage, 0, len(all))}
	for name, avg := range all {
		resp.Averages = append(resp.Averages, studentAverage{Name: name, Average: model.FormatValue(avg)})
	}
	slices.SortFunc(resp.Averages, func(a, b studentAverage) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatistics handles GET /statistics?subject=S.
func (h *ReportsHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	subject := model.NormalizeSubject(r.URL.Query().Get("subject"))
	summary, err := h.deps.Statistics(r.Context(), subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatisticsResponse(subject, summary))
}

// HandleSubjects handles GET /subjects.
func (h *ReportsHandler) HandleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.deps.Subjects(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"subjects": subjects})
}

// HandleExport handles GET /export.csv.
func (h *ReportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.ExportRows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="scores.csv"`)
	w.WriteHeader(http.StatusOK)
	_ = export.WriteCSV(w, rows)
}
