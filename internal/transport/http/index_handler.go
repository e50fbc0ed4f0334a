package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/middleware"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/internal/services"
)

// IndexHandler serves index computation and the catalogue
type IndexHandler struct {
	service      IndexService
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewIndexHandler creates an index handler
func NewIndexHandler(service IndexService, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *IndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "index_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /api/v1/indices routes
func (h *IndexHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Compute)
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", h.Catalog)
		r.Get("/{indexID}", h.Describe)
	})

	return r
}

// Compute handles POST /api/v1/indices
func (h *IndexHandler) Compute(w http.ResponseWriter, r *http.Request) {
	req, err := parseComputeRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	format, err := schema.FormatFromContentType(contentType)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.UnsupportedMediaType(contentType))
		return
	}

	raw, err := schema.Read(r.Body, format)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.UnreadableInput(err))
		return
	}

	result, err := h.service.Compute(r.Context(), raw, req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidBasePeriod) {
			err = apierrors.NewValidationErrors([]apierrors.ValidationError{
				{Field: "base_end", Message: "base_end must not be before base_start"},
			})
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "indices computed",
		slog.String("run_id", result.RunID),
		slog.String("format", string(format)),
		slog.Int("results", len(result.Results)),
		slog.Int("failures", len(result.Failures)))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// Catalog handles GET /api/v1/indices/catalog
func (h *IndexHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	entries := h.service.Catalog()
	render.JSON(w, r, map[string]interface{}{
		"indices": entries,
		"count":   len(entries),
	})
}

// Describe handles GET /api/v1/indices/catalog/{indexID}
func (h *IndexHandler) Describe(w http.ResponseWriter, r *http.Request) {
	req := services.DescribeRequest{IndexID: chi.URLParam(r, "indexID")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	entry, err := h.service.Lookup(req.IndexID)
	if err != nil {
		if errors.Is(err, services.ErrIndexNotFound) {
			err = apierrors.NotFoundError("index " + req.IndexID)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

func parseComputeRequest(r *http.Request) (services.ComputeRequest, error) {
	q := r.URL.Query()
	req := services.ComputeRequest{
		BaseStart: q.Get("base_start"),
		BaseEnd:   q.Get("base_end"),
	}
	if v := q.Get("ranking_limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return req, apierrors.NewValidationErrors([]apierrors.ValidationError{
				{Field: "ranking_limit", Message: "ranking_limit must be an integer"},
			})
		}
		req.RankingLimit = &limit
	}
	return req, nil
}
