package api

import (
	"errors"
	"net/http"
	"strconv"
)

// maxImportBytes bounds a POST /import body.
const maxImportBytes = 10 << 20

// ImportHandler handles bulk score imports.
type ImportHandler struct {
	deps ImportDependencies
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps ImportDependencies) *ImportHandler {
	return &ImportHandler{deps: deps}
}

type importFailure struct {
	Line    int    `json:"line"`
	Student string `json:"student"`
	Error   string `json:"error"`
}

type importResponse struct {
	Applied  int             `json:"applied"`
	Rejected int             `json:"rejected"`
	Failures []importFailure `json:"failures"`
}

// HandleImport applies a text/csv body in the export layout. Rows that
// cannot be applied are listed in the response; the rest stay applied.
// ?create=true registers unknown students.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	create := false
	if v := r.URL.Query().Get("create"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeDomainError(w, badRequest("import", err))
			return
		}
		create = parsed
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	report, err := h.deps.Import(r.Context(), body, create)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		writeDomainError(w, err)
		return
	}

	resp := importResponse{
		Applied:  report.Applied,
		Rejected: len(report.Failures),
		Failures: make([]importFailure, 0, len(report.Failures)),
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, importFailure{Line: f.Line, Student: f.Student, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}
