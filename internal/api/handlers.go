package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/resilience"
	"github.com/MrWong99/singalong/internal/session"
	"github.com/MrWong99/singalong/internal/takestore"
	"github.com/MrWong99/singalong/pkg/lyrics"
)

// retryAfterSeconds is sent with 503 responses caused by an open store
// circuit.
const retryAfterSeconds = "30"

// ParseResponse is the body of POST /v1/lyrics/parse.
type ParseResponse struct {
	Segments  []lyrics.Segment `json:"segments"`
	Truncated bool             `json:"truncated"`
	Line      int              `json:"line,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// SessionResponse is the body of POST /v1/sessions and GET /v1/sessions/{id}.
type SessionResponse struct {
	session.Info
	Segments []lyrics.Segment `json:"segments"`
	Line     int              `json:"line,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// SessionsResponse is the body of GET /v1/sessions.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
}

// TakesResponse is the body of GET /v1/sessions/{id}/takes.
type TakesResponse struct {
	Takes []takestore.Take `json:"takes"`
}

func newParseResponse(res lyrics.Result) ParseResponse {
	segs := res.Segments
	if segs == nil {
		segs = []lyrics.Segment{}
	}
	return ParseResponse{Segments: segs, Truncated: res.Truncated, Line: res.Line, Reason: res.Reason}
}

func newSessionResponse(s *session.Session) SessionResponse {
	res := s.ParseResult()
	return SessionResponse{
		Info:     s.Info(),
		Segments: s.Track().Segments(),
		Line:     res.Line,
		Reason:   res.Reason,
	}
}

// readBody reads the request body bounded by the upload limit. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	return b, true
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	b, ok := s.readBody(w, r)
	if !ok {
		return
	}
	res := lyrics.ParseReport(string(b))
	s.metrics.RecordLyricsParse(r.Context(), res.Truncated)
	writeJSON(w, http.StatusOK, newParseResponse(res))
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	b, ok := s.readBody(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.Open(r.Context(), string(b))
	if err != nil {
		observe.Logger(r.Context()).Error("open session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	err := s.sessions.Close(r.PathValue("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		// The session is gone even when one of its closers failed.
		observe.Logger(r.Context()).Warn("session closed with errors", "session_id", r.PathValue("id"), "err", err)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListTakes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	takes, err := s.takes.List(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Error("list takes failed", "session_id", id, "err", err)
		writeStoreError(w, err, "failed to list takes")
		return
	}
	if takes == nil {
		takes = []takestore.Take{}
	}
	writeJSON(w, http.StatusOK, TakesResponse{Takes: takes})
}

func (s *Server) handleGetTake(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	take, err := s.takes.Get(r.Context(), id)
	if errors.Is(err, takestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "take not found")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("get take failed", "take_id", id, "err", err)
		writeStoreError(w, err, "failed to load take")
		return
	}
	writeWAV(w, take)
}

func (s *Server) handleDeleteTake(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.takes.Delete(r.Context(), id); err != nil {
		observe.Logger(r.Context()).Error("delete take failed", "take_id", id, "err", err)
		writeStoreError(w, err, "failed to delete take")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// writeStoreError answers a take store failure: 503 with Retry-After while the
// store's circuit is open, 500 otherwise.
func writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, resilience.ErrOpen) {
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, "take storage unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func writeWAV(w http.ResponseWriter, take *takestore.Take) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(take.WAV)))
	w.Header().Set("X-Take-ID", take.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(take.WAV)
}
