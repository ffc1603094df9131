package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/gradebook/internal/domain/model"
)

// StudentsHandler serves /students and everything below it.
type StudentsHandler struct {
	deps StudentDependencies
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(deps StudentDependencies) *StudentsHandler {
	return &StudentsHandler{deps: deps}
}

type addStudentRequest struct {
	Name string `json:"name"`
}

type recordScoreRequest struct {
	Subject string `json:"subject"`
	// Score accepts a JSON number or a numeric string; the literal text is
	// parsed as a decimal so no binary rounding happens on the way in.
	Score json.Number `json:"score"`
}

type scoreResponse struct {
	Index   int    `json:"index"`
	Subject string `json:"subject"`
	Score   string `json:"score"`
}

type studentResponse struct {
	Name    string          `json:"name"`
	Scores  []scoreResponse `json:"scores"`
	Average string          `json:"average"`
}

type averageResponse struct {
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Average string `json:"average"`
}

// HandleList handles GET /students.
func (h *StudentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.deps.Students(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"students": names})
}

// HandleAdd handles POST /students.
func (h *StudentsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_student"
	var req addStudentRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, badRequest(op, err))
		return
	}
	if err := h.deps.AddStudent(r.Context(), req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeStudent(w, r, model.NormalizeName(req.Name), http.StatusCreated)
}

// HandleGet handles GET /students/{name}.
func (h *StudentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.writeStudent(w, r, r.PathValue("name"), http.StatusOK)
}

// HandleRemove handles DELETE /students/{name}.
func (h *StudentsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveStudent(r.Context(), r.PathValue("name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecordScore handles POST /students/{name}/scores.
func (h *StudentsHandler) HandleRecordScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_score"
	var req recordScoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, badRequest(op, err))
		return
	}
	name := r.PathValue("name")
	if _, err := h.deps.RecordScore(r.Context(), name, req.Subject, req.Score.String()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeStudent(w, r, name, http.StatusCreated)
}

// HandleRemoveScore handles DELETE /students/{name}/scores/{index}.
func (h *StudentsHandler) HandleRemoveScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_score"
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeDomainError(w, badRequest(op, errors.New("index must be an integer")))
		return
	}
	if err := h.deps.RemoveScore(r.Context(), r.PathValue("name"), index); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAverage handles GET /students/{name}/average?subject=S.
func (h *StudentsHandler) HandleAverage(w http.ResponseWriter, r *http.Request) {
	name := model.NormalizeName(r.PathValue("name"))
	subject := model.NormalizeSubject(r.URL.Query().Get("subject"))
	avg, err := h.deps.Average(r.Context(), name, subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, averageResponse{
		Name:    name,
		Subject: subject,
		Average: model.FormatValue(avg),
	})
}

func (h *StudentsHandler) writeStudent(w http.ResponseWriter, r *http.Request, name string, status int) {
	st, err := h.deps.Student(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	avg, err := h.deps.Average(r.Context(), st.Name, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := studentResponse{
		Name:    st.Name,
		Scores:  make([]scoreResponse, len(st.Scores)),
		Average: model.FormatValue(avg),
	}
	for i, sc := range st.Scores {
		resp.Scores[i] = scoreResponse{Index: i, Subject: sc.Subject, Score: model.FormatValue(sc.Value)}
	}
	writeJSON(w, status, resp)
}
