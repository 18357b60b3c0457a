package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	metrics *Metrics
	baseURL string
}

func NewHTTPHandler(service ports.LinkService, metrics *Metrics, baseURL string) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		metrics: metrics,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginalURL string            `json:"original_url"`
	ExpiresAt   string            `json:"expires_at,omitempty"`
	Title       string            `json:"title,omitempty"`
	UTM         map[string]string `json:"utm,omitempty"`
}

// UpdateLinkRequest payload. Absent fields are left unchanged; an empty
// expires_at removes the expiry.
type UpdateLinkRequest struct {
	OriginalURL *string           `json:"original_url,omitempty"`
	Title       *string           `json:"title,omitempty"`
	UTM         map[string]string `json:"utm,omitempty"`
	ExpiresAt   *string           `json:"expires_at,omitempty"`
}

// LinkResponse is a link plus its public short URL.
type LinkResponse struct {
	*domain.Link
	ShortURL string `json:"short_url"`
}

func (h *HTTPHandler) toResponse(link *domain.Link) LinkResponse {
	return LinkResponse{Link: link, ShortURL: h.baseURL + "/open/" + link.ShortCode}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	link, err := h.service.Create(r.Context(), domain.CreateLinkInput{
		OwnerID:     PrincipalFrom(r.Context()),
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
		Title:       req.Title,
		UTM:         req.UTM,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(link))
}

// Redirect to original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["short_code"]
	if code == "" {
		writeErrorCode(w, http.StatusBadRequest, "bad_request", "short code missing")
		return
	}

	originalURL, err := h.service.Resolve(r.Context(), code)
	h.metrics.observeResolve(err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// Get Link
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.Get(r.Context(), PrincipalFrom(r.Context()), mux.Vars(r)["short_code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// List Links
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.ListByOwner(r.Context(), PrincipalFrom(r.Context()), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	link, err := h.service.Update(r.Context(), PrincipalFrom(r.Context()), mux.Vars(r)["short_code"], domain.LinkUpdate{
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		UTM:         req.UTM,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(link))
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SoftDelete(r.Context(), PrincipalFrom(r.Context()), mux.Vars(r)["short_code"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
