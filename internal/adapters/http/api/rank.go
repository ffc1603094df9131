// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
)

// RankDependencies defines the interface for ranking operations.
type RankDependencies interface {
	Ranking(ctx context.Context, q records.RankQuery) ([]records.RankEntry, error)
}

// RankHandler handles ranking requests.
type RankHandler struct {
	deps     RankDependencies
	maxLimit int
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies, maxLimit int) *RankHandler {
	return &RankHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type rankEntryResponse struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Average string `json:"average"`
	Count   int    `json:"count"`
}

// HandleGetRanking handles GET /ranking?subject=S&where=EXPR&limit=N.
// Without limit the configured maximum applies.
func (h *RankHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	q := r.URL.Query()

	limit := h.maxLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, errors.New("limit must be a positive integer")))
			return
		}
		if h.maxLimit > 0 && n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", badRequest(op, fmt.Errorf("limit must not exceed %d", h.maxLimit)))
			return
		}
		limit = n
	}

	entries, err := h.deps.Ranking(r.Context(), records.RankQuery{
		Subject: model.NormalizeSubject(q.Get("subject")),
		Where:   q.Get("where"),
		Limit:   limit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]rankEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = rankEntryResponse{Rank: e.Rank, Name: e.Name, Average: model.FormatValue(e.Average), Count: e.Count}
	}
	writeJSON(w, http.StatusOK, resp)
}
