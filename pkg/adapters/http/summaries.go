package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/go-chi/chi/v5"
)

// summaryStore returns the per-question summary store of an inquiry.
func (s *Server) summaryStore(inquiryID string) *kv.Store[string] {
	return kv.New[string](s.summaries, "summary:"+inquiryID)
}

type summaryBody struct {
	Summary string `json:"summary"`
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	store := s.summaryStore(chi.URLParam(r, "inquiryID"))
	text, err := store.Get(r.Context(), chi.URLParam(r, "nodeID"))
	if errors.Is(err, kv.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no summary for node"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryBody{Summary: text})
}

func (s *Server) putSummary(w http.ResponseWriter, r *http.Request) {
	var body summaryBody
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "invalid summary", err)
		return
	}
	store := s.summaryStore(chi.URLParam(r, "inquiryID"))
	if err := store.Put(r.Context(), chi.URLParam(r, "nodeID"), body.Summary); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listSummaries(w http.ResponseWriter, r *http.Request) {
	store := s.summaryStore(chi.URLParam(r, "inquiryID"))
	ids, err := store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		text, err := store.Get(r.Context(), id)
		if err != nil {
			continue
		}
		out[id] = text
	}
	writeJSON(w, http.StatusOK, out)
}
