package httpserver

import (
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/cors"

    apprec "github.com/bryanwahyu/naturelens/internal/application/recognition"
    domain "github.com/bryanwahyu/naturelens/internal/domain/recognition"
    "github.com/bryanwahyu/naturelens/internal/middleware"
)

type Router struct {
	svc *apprec.Service
}

// CORS returns the permissive cross-origin middleware. It must sit outside
// the auth middleware so preflight requests, which carry no Authorization
// header, are answered, and so error envelopes carry the allowance too.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
}

func NewRouter(svc *apprec.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/uploads", r.wrap(r.handleUploadSlot))
		rt.Post("/recognitions", r.wrap(r.handleRecognize))
		rt.Get("/recognitions/history", r.wrap(r.handleHistory))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			writeError(w, err)
		}
	}
}

// writeError maps a failure to a status class and a sanitized envelope.
// The raw error goes to the operator log, never to the caller.
func writeError(w http.ResponseWriter, err error) {
	log.Printf("request failed: %v", err)

	status := http.StatusInternalServerError
	code := "InternalError"
	msg := "an unexpected error occurred"

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, "Unauthorized", "subject identity not found in token"
	case errors.Is(err, domain.ErrBadRequest):
		status, code, msg = http.StatusBadRequest, "BadRequest", "imageKey is required and must belong to the caller"
	case errors.Is(err, domain.ErrClassificationParse):
		status, code, msg = http.StatusBadGateway, "ClassificationParseFailure", "the classification model returned malformed output"
	case errors.Is(err, domain.ErrClassificationInvalid):
		status, code, msg = http.StatusBadGateway, "ClassificationValidationFailure", "the classification model returned out-of-contract output"
	case errors.Is(err, domain.ErrSigningFailure):
		status, code, msg = http.StatusBadGateway, "SigningFailure", "could not mint a storage credential"
	case errors.Is(err, domain.ErrPersistenceFailure):
		status, code, msg = http.StatusInternalServerError, "PersistenceFailure", "could not persist the recognition record"
	case errors.Is(err, domain.ErrEnrichmentFailure):
		status, code, msg = http.StatusBadGateway, "EnrichmentFailure", "could not mint image credentials for the history page"
	}

	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// POST /v1/uploads
// Body (optional): {"fileExtension": "png"}
func (r *Router) handleUploadSlot(w http.ResponseWriter, req *http.Request) error {
	subject := middleware.GetSubjectFromContext(req.Context())

	// body is optional; a missing or malformed body falls back to defaults
	var body struct {
		FileExtension string `json:"fileExtension"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	slot, err := r.svc.RequestUploadSlot(req.Context(), subject, body.FileExtension)
	if err != nil {
		return err
	}

	middleware.IncrementUploadSlots()
	writeJSON(w, http.StatusOK, slot)
	return nil
}

// POST /v1/recognitions
// Body: {"imageKey": "users/<subject>/image-<ts>.<ext>"}
func (r *Router) handleRecognize(w http.ResponseWriter, req *http.Request) error {
	subject := middleware.GetSubjectFromContext(req.Context())

	var body struct {
		ImageKey string `json:"imageKey"`
	}
	_ = json.NewDecoder(req.Body).Decode(&body)

	rec, err := r.svc.Recognize(req.Context(), subject, body.ImageKey)
	if err != nil {
		middleware.IncrementRecognitionsFailed()
		return err
	}
	middleware.IncrementRecognitions()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"recognition": map[string]any{
			"type":           rec.Type,
			"scientificName": rec.ScientificName,
			"commonName":     rec.CommonName,
			"description":    rec.Description,
			"confidence":     rec.Confidence,
			"imageKey":       rec.ImageKey,
		},
	})
	return nil
}

// GET /v1/recognitions/history?limit=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	subject := middleware.GetSubjectFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	items, err := r.svc.ListHistory(req.Context(), subject, limit)
	if err != nil {
		return err
	}
	middleware.IncrementHistoryQueries()

	if items == nil {
		items = []apprec.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"history": items,
	})
	return nil
}
