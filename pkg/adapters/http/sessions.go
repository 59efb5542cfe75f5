package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/session"
	"github.com/go-chi/chi/v5"
)

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Create(r.Context(), chi.URLParam(r, "inquiryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) beginSession(w http.ResponseWriter, r *http.Request) {
	var who domain.Respondent
	if err := decodeJSON(r, &who); err != nil {
		badRequest(w, "invalid respondent", err)
		return
	}
	step, err := s.sessions.Begin(r.Context(), chi.URLParam(r, "sessionID"), who)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) submitResponse(w http.ResponseWriter, r *http.Request) {
	var resp domain.Response
	if err := decodeJSON(r, &resp); err != nil {
		badRequest(w, "invalid response", err)
		return
	}
	step, err := s.sessions.Submit(r.Context(), chi.URLParam(r, "sessionID"), resp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionEvents streams paced messages and state diffs as server-sent events.
// ?types=message,state restricts the stream.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	chat, err := s.sessions.Chat(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	want := map[session.UpdateType]bool{session.UpdateMessage: true, session.UpdateState: true}
	if filter := r.URL.Query().Get("types"); filter != "" {
		want = map[session.UpdateType]bool{}
		for _, t := range strings.Split(filter, ",") {
			want[session.UpdateType(strings.TrimSpace(t))] = true
		}
	}

	updates, stop := chat.Subscribe()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := chat.State()
	if want[session.UpdateState] {
		writeEvent(w, "state", domain.Diff(nil, last))
	} else {
		fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	}
	flusher.Flush()
	s.logger.Debug("sse subscribed", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", "session_id", sessionID)
			return
		case u, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if !want[u.Type] {
				continue
			}
			switch u.Type {
			case session.UpdateMessage:
				writeEvent(w, "message", u.Item)
			case session.UpdateState:
				diff := domain.Diff(last, u.State)
				last = u.State
				if diff == nil {
					continue
				}
				writeEvent(w, "state", diff)
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
