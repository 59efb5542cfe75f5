package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/go-chi/chi/v5"
)

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.repo.LoadGraph(r.Context(), chi.URLParam(r, "inquiryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// putGraph replaces the stored graph. The document must match the graph
// schema; structural problems are reported but do not block a draft save.
func (s *Server) putGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "inquiryID")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		badRequest(w, "read body", err)
		return
	}
	g, err := validator.ParseDocument(data)
	if err != nil {
		badRequest(w, "invalid graph document", err)
		return
	}
	if err := s.repo.SaveGraph(r.Context(), id, g); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	if e, ok := s.editors[id]; ok {
		e.session.History().Reset(g)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, validator.Validate(g))
}

// validate checks the posted document, or the stored graph when the body is empty.
func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		badRequest(w, "read body", err)
		return
	}

	var g *domain.Graph
	if len(data) == 0 {
		g, err = s.repo.LoadGraph(r.Context(), chi.URLParam(r, "inquiryID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if g, err = validator.ParseDocument(data); err != nil {
		writeJSON(w, http.StatusOK, validator.Report{Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, validator.Validate(g))
}

func (s *Server) listResponses(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.repo.(ports.ResponseLister)
	if !ok {
		s.writeError(w, r, errors.New("storage does not support listing responses"))
		return
	}
	id := chi.URLParam(r, "inquiryID")
	if _, err := s.repo.LoadGraph(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := lister.ListResponses(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Submission{}
	}
	writeJSON(w, http.StatusOK, list)
}
