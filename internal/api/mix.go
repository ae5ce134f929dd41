package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/resilience"
	"github.com/MrWong99/singalong/internal/session"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

// Multipart field names of POST /v1/sessions/{id}/mix.
const (
	FieldBacking = "backing"
	FieldVocal   = "vocal"
)

// multipartMemory is how much of a multipart form is held in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

// handleMix accepts a multipart form with "backing" and "vocal" file parts and
// answers with the mixed WAV. Status codes:
//
//	200 mixed; body is audio/wav, X-Take-ID names the stored take
//	400 malformed form or missing part
//	404 unknown session
//	409 another mix on this session is running
//	413 body exceeds the upload limit
//	422 a track could not be decoded
//	500 render, encode or storage failure
//	503 take storage circuit open
func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	log := observe.SessionLogger(r.Context(), sess.ID())

	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(s.maxUpload, 10)+" bytes")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	backing, err := formFile(r.MultipartForm, FieldBacking)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vocal, err := formFile(r.MultipartForm, FieldVocal)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	take, err := sess.Mix(r.Context(), backing, vocal)
	if err != nil {
		status, msg := mixStatus(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		if status >= http.StatusInternalServerError {
			log.Error("mix failed", "err", err)
		} else {
			log.Info("mix rejected", "status", status, "err", err)
		}
		writeError(w, status, msg)
		return
	}
	writeWAV(w, take)
}

// mixStatus maps a [session.Session.Mix] error to a status code and a client
// message.
func mixStatus(err error) (int, string) {
	var me *mixdown.Error
	switch {
	case errors.Is(err, session.ErrMixInFlight):
		return http.StatusConflict, "a mix is already running for this session"
	case errors.Is(err, session.ErrClosed):
		return http.StatusNotFound, "session not found"
	case errors.As(err, &me) && me.Stage == mixdown.StageDecoding:
		return http.StatusUnprocessableEntity, fmt.Sprintf("could not decode %s track", me.Track)
	case errors.Is(err, resilience.ErrOpen):
		return http.StatusServiceUnavailable, "take storage unavailable"
	default:
		return http.StatusInternalServerError, "mix failed"
	}
}

// formFile returns the contents of the first file uploaded under field.
func formFile(form *multipart.Form, field string) ([]byte, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, fmt.Errorf("missing %q file part", field)
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open %q part: %w", field, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %q part: %w", field, err)
	}
	return b, nil
}
