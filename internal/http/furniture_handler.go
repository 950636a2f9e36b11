package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type FurnitureStore interface {
	GetFurniture(ctx context.Context, id int64) (*domain.Furniture, error)
	ListFurniture(ctx context.Context, filter catalog.Filter) ([]*domain.Furniture, error)
	ListFurnitureByUserID(ctx context.Context, userID string) ([]*domain.Furniture, error)
	CreateFurniture(ctx context.Context, f *domain.Furniture) error
}

type FurnitureHandler struct {
	catalog FurnitureStore
	logger  *slog.Logger
	timeout time.Duration
}

func NewFurnitureHandler(store FurnitureStore, logger *slog.Logger, timeout time.Duration) *FurnitureHandler {
	return &FurnitureHandler{
		catalog: store,
		logger:  logger,
		timeout: timeout,
	}
}

type FurnitureDTO struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Location    string `json:"location"`
	Image       string `json:"image,omitempty"`
	Material    string `json:"material"`
	Dimensions  string `json:"dimensions"`
	Condition   string `json:"condition"`
	Style       string `json:"style,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// CreateFurnitureDTO is a new listing. Image is a URL the client has
// already uploaded.
type CreateFurnitureDTO struct {
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Location    string `json:"location"`
	Image       string `json:"image"`
	Material    string `json:"material"`
	Dimensions  string `json:"dimensions"`
	Condition   string `json:"condition"`
	Style       string `json:"style"`
	Description string `json:"description"`
}

const defaultCondition = "상"

func (d *CreateFurnitureDTO) toDomain(userID string) (*domain.Furniture, map[string]bool, bool) {
	f := &domain.Furniture{
		UserID:      userID,
		Title:       strings.TrimSpace(d.Title),
		Price:       d.Price,
		Location:    strings.TrimSpace(d.Location),
		Image:       strings.TrimSpace(d.Image),
		Material:    strings.TrimSpace(d.Material),
		Dimensions:  strings.TrimSpace(d.Dimensions),
		Condition:   strings.TrimSpace(d.Condition),
		Style:       strings.TrimSpace(d.Style),
		Description: strings.TrimSpace(d.Description),
	}
	if f.Condition == "" {
		f.Condition = defaultCondition
	}

	presence := map[string]bool{
		"title":      f.Title != "",
		"price":      f.Price > 0,
		"location":   f.Location != "",
		"image":      f.Image != "",
		"material":   f.Material != "",
		"dimensions": f.Dimensions != "",
	}
	for _, ok := range presence {
		if !ok {
			return nil, presence, false
		}
	}
	return f, presence, true
}

// POST /api/v1/furniture
func (h *FurnitureHandler) CreateFurniture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing_token", msgMissingToken)
		return
	}

	var body CreateFurnitureDTO
	if err := render.DecodeJSON(r.Body, &body); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   msgInvalidBody,
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return
	}

	f, presence, ok := body.toDomain(id.UserID)
	if !ok {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   msgFurnitureFields,
			Code:    "missing_parameters",
			Details: presence,
		})
		return
	}

	if err := h.catalog.CreateFurniture(ctx, f); err != nil {
		h.logger.ErrorContext(ctx, "failed to create furniture", "user_id", id.UserID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}

	h.logger.InfoContext(ctx, "furniture listed", "id", f.ID, "user_id", id.UserID)
	respondJSON(w, r, http.StatusCreated, convertFurniture(f))
}

// GET /api/v1/me/furniture
func (h *FurnitureHandler) ListMyFurniture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing_token", msgMissingToken)
		return
	}

	items, err := h.catalog.ListFurnitureByUserID(ctx, id.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list own furniture", "user_id", id.UserID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}
	respondJSON(w, r, http.StatusOK, convertFurnitureList(items))
}

// GET /api/v1/furniture?style=&material=&limit=
func (h *FurnitureHandler) ListFurniture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	filter := catalog.Filter{
		Style:    q.Get("style"),
		Material: q.Get("material"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	items, err := h.catalog.ListFurniture(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list furniture", "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}

	respondJSON(w, r, http.StatusOK, convertFurnitureList(items))
}

// GET /api/v1/furniture/{id}
func (h *FurnitureHandler) GetFurniture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, "invalid_id", msgInvalidID)
		return
	}

	f, err := h.catalog.GetFurniture(ctx, id)
	if errors.Is(err, catalog.ErrFurnitureNotFound) {
		respondError(w, r, http.StatusNotFound, "not_found", msgFurnitureMissing)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get furniture", "id", id, "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}

	respondJSON(w, r, http.StatusOK, convertFurniture(f))
}

func convertFurnitureList(items []*domain.Furniture) []FurnitureDTO {
	dtos := make([]FurnitureDTO, 0, len(items))
	for _, f := range items {
		dtos = append(dtos, convertFurniture(f))
	}
	return dtos
}

func convertFurniture(f *domain.Furniture) FurnitureDTO {
	return FurnitureDTO{
		ID:          f.ID,
		Title:       f.Title,
		Price:       f.Price,
		Location:    f.Location,
		Image:       f.Image,
		Material:    f.Material,
		Dimensions:  f.Dimensions,
		Condition:   f.Condition,
		Style:       f.Style,
		Description: f.Description,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}
