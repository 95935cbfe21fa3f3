package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/resource-store/pkg/resource"
)

// maxHeaderBlockBytes bounds how much of an uploaded part is read for
// metadata extraction; the provider header block sits well within this.
const maxHeaderBlockBytes = 1 << 20

const defaultPageSize = 20

// maxUploadURLCount caps the number of upload URLs issued per request
const maxUploadURLCount = 100

// Envelope is the response wrapper for record and collection results
type Envelope struct {
	Result interface{} `json:"result"`
	Status string      `json:"status"`
	Cursor string      `json:"cursor,omitempty"`
	Count  int         `json:"count,omitempty"`
}

// ErrorResponse is the response body for failed requests
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UploadURL is one issued upload URL in an upload-URL listing
type UploadURL struct {
	UploadURL string `json:"upload_url"`
}

// Handler handles HTTP requests for resources
type Handler struct {
	service resource.Service
	admin   func(http.Handler) http.Handler
}

// NewHandler creates a new resource handler. The admin middleware gates every
// endpoint except the upload ones; pass nil to leave them open (tests).
func NewHandler(service resource.Service, admin func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service: service,
		admin:   admin,
	}
}

// Routes returns the routes for resources
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.admin != nil {
			r.Use(h.admin)
		}
		r.Get("/", h.ListResources)
		r.Delete("/", h.DeleteResources)
		r.Get("/{key}/", h.GetResource)
		r.Delete("/{key}/", h.DeleteResource)
	})

	// Upload endpoints are CORS-open: browsers hit them from arbitrary
	// origins after a direct-to-blob-store upload.
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
		r.Get("/upload/", h.UploadURLs)
		r.Post("/upload/", h.CompleteUpload)
		r.Options("/upload/", h.UploadPreflight)
	})

	return r
}

// ListResources returns either the exact records named by resource_keys
// (bypassing pagination) or one page of the full listing plus a cursor.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	rawKeys := r.URL.Query()["resource_keys"]
	if len(rawKeys) > 0 {
		keys, err := parseKeys(rawKeys)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		resources, err := h.service.GetResources(r.Context(), keys)
		if err != nil {
			slog.Error("Failed to get resources", "err", err)
			renderError(w, r, http.StatusInternalServerError, "server error")
			return
		}

		found := make([]*resource.Resource, 0, len(resources))
		for _, res := range resources {
			if res != nil {
				found = append(found, res)
			}
		}
		render.JSON(w, r, Envelope{Result: found, Status: "success"})
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	resources, nextCursor, err := h.service.ListResources(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		if errors.Is(err, resource.ErrInvalidCursor) {
			renderError(w, r, http.StatusBadRequest, "invalid cursor")
			return
		}
		slog.Error("Failed to list resources", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}
	if resources == nil {
		resources = []*resource.Resource{}
	}

	render.JSON(w, r, Envelope{Result: resources, Status: "success", Cursor: nextCursor})
}

// DeleteResources bulk-deletes the resources named by resource_keys. Keys
// that do not resolve are skipped; the response echoes the requested set.
func (h *Handler) DeleteResources(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rawKeys := r.Form["resource_keys"]
	if len(rawKeys) == 0 {
		renderError(w, r, http.StatusNotFound, "Resource(s) [] not found")
		return
	}

	keys, err := parseKeys(rawKeys)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DeleteResources(r.Context(), keys); err != nil {
		slog.Error("Failed to delete resources", "keys", rawKeys, "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	render.JSON(w, r, Envelope{Result: rawKeys, Status: "success"})
}

// GetResource returns a single resource by key
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	key, err := uuid.Parse(chi.URLParam(r, "key"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid resource key")
		return
	}

	res, err := h.service.GetResource(r.Context(), key)
	if err != nil {
		if errors.Is(err, resource.ErrResourceNotFound) {
			renderError(w, r, http.StatusNotFound, fmt.Sprintf("Resource %s not found", key))
			return
		}
		slog.Error("Failed to get resource", "key", key, "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	render.JSON(w, r, Envelope{Result: res, Status: "success"})
}

// DeleteResource deletes a single resource and returns the deleted record
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	key, err := uuid.Parse(chi.URLParam(r, "key"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid resource key")
		return
	}

	res, err := h.service.DeleteResource(r.Context(), key)
	if err != nil {
		if errors.Is(err, resource.ErrResourceNotFound) {
			renderError(w, r, http.StatusNotFound, fmt.Sprintf("Resource %s not found", key))
			return
		}
		slog.Error("Failed to delete resource", "key", key, "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	render.JSON(w, r, Envelope{Result: res, Status: "success"})
}

// UploadURLs issues count one-time direct-upload URLs
func (h *Handler) UploadURLs(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			count = parsed
		}
	}
	if count > maxUploadURLCount {
		count = maxUploadURLCount
	}

	urls, err := h.service.UploadURLs(r.Context(), count, r.URL.Path, r.Header.Get("Origin"))
	if err != nil {
		slog.Error("Failed to create upload URLs", "count", count, "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	result := make([]UploadURL, 0, len(urls))
	for _, u := range urls {
		result = append(result, UploadURL{UploadURL: u})
	}

	render.JSON(w, r, Envelope{Result: result, Status: "success", Count: count})
}

// CompleteUpload persists a resource record for a finished direct upload.
// The multipart field "file" carries the provider header block; the blob key
// travels in the part's content-type parameters.
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, r, http.StatusBadRequest, resource.ErrMissingUploadFile.Error())
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxHeaderBlockBytes))
	if err != nil {
		slog.Error("Failed to read upload part", "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	var blobKey string
	if _, params, err := mime.ParseMediaType(header.Header.Get("Content-Type")); err == nil {
		blobKey = params["blob-key"]
	}

	res, err := h.service.CompleteUpload(r.Context(), resource.CompleteUploadRequest{
		UserKey: CurrentUserKey(r.Context()),
		BlobKey: blobKey,
		Raw:     raw,
		Origin:  r.Header.Get("Origin"),
	})
	if err != nil {
		slog.Error("Failed to complete upload", "blob_key", blobKey, "err", err)
		renderError(w, r, http.StatusInternalServerError, "server error")
		return
	}

	render.JSON(w, r, Envelope{Result: res, Status: "success"})
}

// UploadPreflight answers bare OPTIONS requests with an empty success body.
// Real preflights carry Access-Control-Request-Method and are terminated by
// the cors middleware before reaching this handler.
func (h *Handler) UploadPreflight(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{})
}

func parseKeys(rawKeys []string) ([]uuid.UUID, error) {
	keys := make([]uuid.UUID, 0, len(rawKeys))
	for _, raw := range rawKeys {
		key, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid resource key %q", raw)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Status: "error", Message: message})
}
