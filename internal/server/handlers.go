package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/display"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/reader"
	"github.com/FocuswithJustin/JuniperReader/internal/sqlite"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Timestamp string `json:"timestamp"`
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondErr maps engine errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrOutOfRange):
		respondError(w, http.StatusBadRequest, "OUT_OF_RANGE", err.Error())
	case errors.Is(err, errors.ErrUnsupported):
		respondError(w, http.StatusBadRequest, "UNSUPPORTED", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		logging.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.NewValidation(name, "parameter is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &errors.ValidationError{Field: name, Value: raw, Message: "not an integer", Err: err}
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pager.Stats(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"translation": s.svc.Translation(),
		"pager":       stats,
		"sqlite":      sqlite.GetInfo(),
	})
}

type positionResponse struct {
	Position int `json:"position"`
}

type chapterResponse struct {
	Book    int `json:"book"`
	Chapter int `json:"chapter"`
}

func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request) {
	book, err := intParam(r, "book")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	chapter, err := intParam(r, "chapter")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	pos, err := s.svc.Layout().Flatten(book, chapter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, positionResponse{Position: pos})
}

func (s *Server) handleUnflatten(w http.ResponseWriter, r *http.Request) {
	pos, err := intParam(r, "position")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	book, chapter, err := s.svc.Layout().Unflatten(pos)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, chapterResponse{Book: book, Chapter: chapter})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	c, err := s.svc.Layout().ParseRef(ref)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	pos, err := s.svc.Layout().Flatten(c.Book, c.Chapter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	osis, err := s.svc.Layout().FormatRef(c)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"ref":        osis,
		"coordinate": c,
		"position":   pos,
		"title":      display.Title(s.svc.Books().Names[c.Book], c),
	})
}

type chapterPage struct {
	Page        reader.Page       `json:"page"`
	Annotations []annotate.Record `json:"annotations"`
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("position"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "position must be an integer")
		return
	}
	page, err := s.pager.Load(r.Context(), pos)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	anns, err := s.svc.ChapterAnnotations(r.Context(), page.Book, page.Chapter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if anns == nil {
		anns = []annotate.Record{}
	}
	respond(w, http.StatusOK, chapterPage{Page: page, Annotations: anns})
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, ok := display.ParseAnnotationKind(q.Get("kind"))
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "kind must be bookmark, highlight or note")
		return
	}
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = annotate.ByDate.String()
	}
	mode, err := annotate.ParseMode(sortBy)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	items, err := s.svc.Annotated(r.Context(), kind, mode)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, items)
}

type createAnnotationRequest struct {
	Kind  string `json:"kind"`
	Ref   string `json:"ref"`
	Note  string `json:"note,omitempty"`
	Color int    `json:"color,omitempty"`
}

func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req createAnnotationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	kind, ok := display.ParseAnnotationKind(req.Kind)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "kind must be bookmark, highlight or note")
		return
	}
	c, err := s.svc.Layout().ParseRef(req.Ref)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rec, err := s.svc.AddAnnotation(r.Context(), annotate.Record{
		Kind:       kind,
		Coordinate: c,
		Note:       req.Note,
		Color:      display.Color(req.Color),
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, rec)
}

type editAnnotationRequest struct {
	Note  *string `json:"note"`
	Color *int    `json:"color"`
}

func (s *Server) handleEditAnnotation(w http.ResponseWriter, r *http.Request) {
	var req editAnnotationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	var color *display.Color
	if req.Color != nil {
		c := display.Color(*req.Color)
		color = &c
	}
	rec, err := s.svc.EditAnnotation(r.Context(), r.PathValue("id"), req.Note, color)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAnnotation(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}
