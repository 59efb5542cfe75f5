package http

import (
	"context"
	"io"
	"net/http"

	"github.com/aretw0/inquiry/pkg/editor"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/go-chi/chi/v5"
)

// editorView is returned by every editor endpoint.
type editorView struct {
	Graph   any              `json:"graph"`
	Report  validator.Report `json:"report"`
	CanUndo bool             `json:"canUndo"`
	CanRedo bool             `json:"canRedo"`
	Dirty   bool             `json:"dirty"`
}

func (s *Server) view(e *editor.Session) editorView {
	g := e.Graph()
	return editorView{
		Graph:   g,
		Report:  validator.Validate(g),
		CanUndo: e.History().CanUndo(),
		CanRedo: e.History().CanRedo(),
		Dirty:   e.Dirty(),
	}
}

// editorFor returns the open editor session of an inquiry, opening it on first use.
func (s *Server) editorFor(ctx context.Context, inquiryID string) (*editor.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.editors[inquiryID]; ok {
		return e.session, nil
	}

	opts := []editor.Option{
		editor.WithLogger(s.logger),
		editor.WithAutosaveQuiet(s.autosaveQuiet),
	}
	entry := &editorEntry{}
	if s.reasoning != nil {
		sub, err := s.reasoning.Open(ctx, "editor:"+inquiryID)
		if err != nil {
			return nil, err
		}
		entry.fixer = sub
		opts = append(opts, editor.WithFixer(sub))
	}
	sess, err := editor.Open(ctx, s.repo, inquiryID, opts...)
	if err != nil {
		if entry.fixer != nil {
			entry.fixer.Close()
		}
		return nil, err
	}
	entry.session = sess
	s.editors[inquiryID] = entry
	return sess, nil
}

func (s *Server) withEditor(fn func(w http.ResponseWriter, r *http.Request, e *editor.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := s.editorFor(r.Context(), chi.URLParam(r, "inquiryID"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		fn(w, r, e)
	}
}

func (s *Server) editorState(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

func (s *Server) editorCommand(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			badRequest(w, "read body", err)
			return
		}
		cmd, err := editor.DecodeCommand(data)
		if err != nil {
			badRequest(w, "invalid command", err)
			return
		}
		if err := e.Apply(cmd); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

func (s *Server) editorUndo(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		e.Undo()
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

func (s *Server) editorRedo(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		e.Redo()
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

func (s *Server) editorPublish(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		if _, err := e.Publish(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

func (s *Server) editorAutoFix(w http.ResponseWriter, r *http.Request) {
	s.withEditor(func(w http.ResponseWriter, r *http.Request, e *editor.Session) {
		if _, err := e.AutoFix(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(e))
	})(w, r)
}

// editorClose flushes pending edits and forgets the editor session.
func (s *Server) editorClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "inquiryID")
	s.mu.Lock()
	e, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()
	if ok {
		if e.fixer != nil {
			defer e.fixer.Close()
		}
		if err := e.session.Close(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
