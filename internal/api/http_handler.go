package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"lyvo-backend/internal/auth"
	"lyvo-backend/internal/catalog"
	"lyvo-backend/internal/store"
)

// Pinger reports backend connectivity for the health endpoint. The in-memory
// store has nothing to ping, so the handler accepts nil.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog  *catalog.Service
	verifier *auth.Verifier
	pinger   Pinger
	validate *validator.Validate
	log      *logrus.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(cs *catalog.Service, verifier *auth.Verifier, pinger Pinger, log *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		catalog:  cs,
		verifier: verifier,
		pinger:   pinger,
		validate: validator.New(),
		log:      log,
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// storeError translates repository failures at the boundary.
func (h *HTTPHandler) storeError(w http.ResponseWriter, err error, op string) {
	h.log.WithError(err).Errorf("%s store operation failed", op)
	if errors.Is(err, store.ErrStorageUnavailable) {
		h.respondWithError(w, http.StatusServiceUnavailable, "Catalog temporarily unavailable")
		return
	}
	h.respondWithError(w, http.StatusInternalServerError, "Failed to query catalog")
}

// --- Health ---

func (h *HTTPHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "lyvo-be"})
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "n/a"
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus = "healthy"
		if err := h.pinger.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			h.log.WithError(err).Warn("health check database ping failed")
		}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": dbStatus})
}

// --- Catalog ---

// CategoriesResponse matches the front-end contract: {"items": [...]}.
type CategoriesResponse struct {
	Items []string `json:"items"`
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.storeError(w, err, "ListCategories")
		return
	}
	h.respondWithJSON(w, http.StatusOK, CategoriesResponse{Items: categories})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()

	spec := catalog.QuerySpec{
		Query:    qParams.Get("q"),
		Category: qParams.Get("category"),
		Merchant: qParams.Get("merchant"),
		Sort:     qParams.Get("sort"),
		Page:     catalog.DefaultPage,
		PageSize: catalog.DefaultPageSize,
	}

	if priceStr := qParams.Get("min_price"); priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
			return
		}
		spec.MinPrice = &price
	}
	if priceStr := qParams.Get("max_price"); priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
			return
		}
		spec.MaxPrice = &price
	}
	if pageStr := qParams.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid page format")
			return
		}
		spec.Page = page
	}
	if sizeStr := qParams.Get("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid page_size format")
			return
		}
		spec.PageSize = size
	}

	page, err := h.catalog.QueryProducts(r.Context(), spec)
	if err != nil {
		var vErr *catalog.ValidationError
		if errors.As(err, &vErr) {
			h.respondWithError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.storeError(w, err, "QueryProducts")
		return
	}
	h.respondWithJSON(w, http.StatusOK, page)
}

// --- Webhook ---

// WebhookResponse echoes the received event back to the Mini App.
type WebhookResponse struct {
	OK   bool        `json:"ok"`
	Echo interface{} `json:"echo"`
}

// Webhook accepts arbitrary structured events via tg.sendData(). The payload
// shape is intentionally unvalidated; only well-formedness is required.
func (h *HTTPHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event interface{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	defer r.Body.Close()

	h.log.WithField("event", event).Info("mini app event received")
	h.respondWithJSON(w, http.StatusOK, WebhookResponse{OK: true, Echo: event})
}

// --- Auth ---

// AuthInput is the expected body of POST /auth.
type AuthInput struct {
	InitData string `json:"initData" validate:"required"`
}

// AuthResponse reports a successful verification. User is null when the
// signature checked out but the embedded identity was unusable.
type AuthResponse struct {
	OK   bool       `json:"ok"`
	User *auth.User `json:"user"`
}

func (h *HTTPHandler) Auth(w http.ResponseWriter, r *http.Request) {
	var input AuthInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: initData is required")
		return
	}

	user, err := h.verifier.Verify(input.InitData)
	if err != nil {
		// One message per failure class, nothing more. The response never
		// reveals whether the signature or the shared secret was at fault.
		msg := "verification failed"
		if errors.Is(err, auth.ErrMalformedPayload) {
			msg = "malformed init data"
		}
		h.respondWithJSON(w, http.StatusOK, struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{OK: false, Error: msg})
		return
	}

	h.respondWithJSON(w, http.StatusOK, AuthResponse{OK: true, User: user})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/categories", h.ListCategories)
	r.Get("/products", h.ListProducts)
	r.Post("/webhook", h.Webhook)
	r.Post("/auth", h.Auth)
}
