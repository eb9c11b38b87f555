// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"freshlistings/internal/app"
	"freshlistings/internal/domain"
)

// Models is the subset of the model registry the handlers need.
type Models interface {
	Has(id domain.ModelID) bool
	Default() domain.ModelID
}

type Handlers struct {
	S      *app.SearchService
	T      *app.TileService
	Models Models
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type searchResponse struct {
	Query           string              `json:"query"`
	Page            int                 `json:"page"`
	Model           domain.ModelID      `json:"model"`
	Strategy        domain.Strategy     `json:"strategy"`
	Listings        []domain.Listing    `json:"listings"`
	Count           int                 `json:"count"`
	QueryTimeMs     int64               `json:"queryTimeMs"`
	UnderstoodQuery *domain.SearchInput `json:"understoodQuery,omitempty"`
	RealLocation    *string             `json:"realLocation,omitempty"`
	Reason          string              `json:"reason,omitempty"`
}

type predictResponse struct {
	Query           string                  `json:"query"`
	Model           domain.ModelID          `json:"model"`
	UnderstoodQuery *domain.InferredFilters `json:"understoodQuery,omitempty"`
	Feedback        string                  `json:"feedback,omitempty"`
}

type tilesResponse struct {
	Tiles []domain.MapTile `json:"tiles"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/search", h.search)
	s.mux.Get("/v1/predict", h.predict)
	s.mux.Get("/v1/map/cells", h.mapCells)
	s.mux.Get("/v1/listings/{id}", h.getListing)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses. Upstream detail stays in the logs.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownModel):
		writeProblem(w, http.StatusBadRequest, "Invalid request", strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": "))
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
	case errors.Is(err, domain.ErrUpstream):
		log.Warn().Err(err).Msg("upstream failure")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "a backing service is unavailable, retry later")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON sends v with a weak ETag, answering 304 when the client already has it.
// Non-200 responses carry no ETag.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if status == http.StatusOK {
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

// modelAndStrategy reads m and s, falling back to the configured defaults.
func (h *Handlers) modelAndStrategy(r *http.Request) (domain.ModelID, domain.Strategy, string) {
	m := domain.ModelID(strings.TrimSpace(r.URL.Query().Get("m")))
	if m == "" {
		m = h.Models.Default()
	} else if !h.Models.Has(m) {
		return "", "", "unknown model " + strconv.Quote(string(m))
	}
	st, ok := domain.ParseStrategy(strings.TrimSpace(r.URL.Query().Get("s")))
	if !ok {
		return "", "", "strategy must be two-shot or single-shot"
	}
	return m, st, ""
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := app.ValidateQuery(q); err != nil {
		writeError(w, err)
		return
	}
	page := 0
	if ps := r.URL.Query().Get("p"); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil || p < 0 || p > app.MaxPage {
			writeProblem(w, http.StatusBadRequest, "Invalid page", "p must be an integer between 0 and "+strconv.Itoa(app.MaxPage))
			return
		}
		page = p
	}
	model, strategy, bad := h.modelAndStrategy(r)
	if bad != "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", bad)
		return
	}

	out, err := h.S.Search(r.Context(), q, page, model, strategy)
	if err != nil && out.Reason == "" {
		writeError(w, err)
		return
	}

	resp := searchResponse{
		Query:           q,
		Page:            page,
		Model:           model,
		Strategy:        strategy,
		Listings:        out.Page.Listings,
		Count:           out.Page.Total,
		QueryTimeMs:     out.Page.Took.Milliseconds(),
		UnderstoodQuery: out.Input,
		Reason:          out.Reason,
	}
	if resp.Listings == nil {
		resp.Listings = []domain.Listing{}
	}
	if out.Input != nil {
		resp.RealLocation = out.Input.FullAddress
	}

	status := http.StatusOK
	if err != nil {
		log.Warn().Err(err).Str("reason", out.Reason).Msg("search degraded")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if err := app.ValidateQuery(q); err != nil {
		writeError(w, err)
		return
	}
	model, strategy, bad := h.modelAndStrategy(r)
	if bad != "" {
		writeProblem(w, http.StatusBadRequest, "Invalid request", bad)
		return
	}

	f, err := h.S.Predict(r.Context(), q, model, strategy)
	if errors.Is(err, domain.ErrNoUnderstanding) {
		writeJSON(w, r, http.StatusOK, predictResponse{Query: q, Model: model, Feedback: app.ReasonNoUnderstanding})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, predictResponse{Query: q, Model: model, UnderstoodQuery: &f})
}

func (h *Handlers) mapCells(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	tl, err1 := domain.ParseGeoPoint(qs.Get("topLeft"))
	br, err2 := domain.ParseGeoPoint(qs.Get("bottomRight"))
	if err1 != nil || err2 != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid bounds", "topLeft and bottomRight must be lat,lng")
		return
	}
	zoom, err := strconv.Atoi(qs.Get("zoom"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid zoom", "zoom must be an integer")
		return
	}

	tiles, err := h.T.Tiles(r.Context(), app.TileQuery{TopLeft: tl, BottomRight: br, Zoom: zoom, Keyword: qs.Get("keywords")})
	if err != nil {
		writeError(w, err)
		return
	}
	if tiles == nil {
		tiles = []domain.MapTile{}
	}
	writeJSON(w, r, http.StatusOK, tilesResponse{Tiles: tiles})
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.S.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, l)
}
