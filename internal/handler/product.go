package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
	"github.com/sakif/product-registry/internal/service"
)

// ProductResponse is the short product shape returned by reads and updates.
type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	Photos      []string  `json:"photos"`
}

// ProductDetail is the full record, returned on creation.
type ProductDetail struct {
	ProductResponse
	ProductIssue      string     `json:"productIssue"`
	Marque            string     `json:"marque"`
	Status            string     `json:"status"`
	UserID            *uuid.UUID `json:"user_id"`
	MairieUserID      uuid.UUID  `json:"mairie_user_id"`
	AssociationUserID *uuid.UUID `json:"association_user_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeposedAt         *time.Time `json:"deposed_at"`
}

func toProductResponse(p *model.Product) ProductResponse {
	photos := []string(p.Photos)
	if photos == nil {
		photos = []string{}
	}
	return ProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Reference:   p.Reference,
		Photos:      photos,
	}
}

func toProductDetail(p *model.Product) ProductDetail {
	return ProductDetail{
		ProductResponse:   toProductResponse(p),
		ProductIssue:      p.ProductIssue,
		Marque:            p.Marque,
		Status:            p.Status,
		UserID:            p.UserID,
		MairieUserID:      p.MairieUserID,
		AssociationUserID: p.AssociationUserID,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		DeposedAt:         p.DeposedAt,
	}
}

func toProductList(products []model.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	return out
}

type createProductRequest struct {
	Title             string   `json:"title" validate:"required,max=255"`
	Description       string   `json:"description" validate:"required,max=255"`
	ProductIssue      string   `json:"productIssue" validate:"required,max=255"`
	Marque            string   `json:"marque" validate:"required,max=255"`
	Status            string   `json:"status" validate:"required,max=255"`
	UserID            *string  `json:"user_id" validate:"omitempty,uuid"`
	MairieUserID      string   `json:"mairie_user_id" validate:"required,uuid"`
	AssociationUserID *string  `json:"association_user_id" validate:"omitempty,uuid"`
	Photos            []string `json:"photos" validate:"omitempty,dive,required,max=2048"`
}

type updateProductRequest struct {
	Title             *string   `json:"title" validate:"omitempty,max=255"`
	Description       *string   `json:"description" validate:"omitempty,max=255"`
	ProductIssue      *string   `json:"productIssue" validate:"omitempty,max=255"`
	Marque            *string   `json:"marque" validate:"omitempty,max=255"`
	Status            *string   `json:"status" validate:"omitempty,min=1,max=255"`
	UserID            *string   `json:"user_id" validate:"omitempty,uuid"`
	MairieUserID      *string   `json:"mairie_user_id" validate:"omitempty,uuid"`
	AssociationUserID *string   `json:"association_user_id" validate:"omitempty,uuid"`
	Photos            *[]string `json:"photos" validate:"omitempty,dive,required,max=2048"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,max=255"`
}

type updateAssociationRequest struct {
	AssociationUserID string `json:"association_user_id" validate:"required,uuid"`
}

// ProductHandler serves /products.
type ProductHandler struct {
	products *service.ProductService
	logger   *slog.Logger
}

func NewProductHandler(products *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// Routes returns the product routes, to be mounted under /products.
func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/user/{id}", h.HandleListByOwner)
	r.Get("/mairie/{id}", h.HandleListByMunicipality)
	r.Get("/association/{id}", h.HandleListByAssociation)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Put("/{id}/status", h.HandleUpdateStatus)
	r.Put("/{id}/association", h.HandleUpdateAssociation)
	r.Put("/{id}/deposed", h.HandleMarkDeposed)
	r.Delete("/{id}", h.HandleDelete)
	return r
}

// HandleCreate handles POST /products/ and answers 201 {"product": {...}}.
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	mairieID, err := uuid.Parse(req.MairieUserID)
	if err != nil {
		writeError(w, apperror.InvalidArgument("mairie_user_id", req.MairieUserID))
		return
	}
	userID, err := optionalUUID("user_id", req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	associationID, err := optionalUUID("association_user_id", req.AssociationUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	in := repository.NewProduct{
		Title:             req.Title,
		Description:       req.Description,
		ProductIssue:      req.ProductIssue,
		Marque:            req.Marque,
		Status:            req.Status,
		MairieUserID:      mairieID,
		UserID:            userID,
		AssociationUserID: associationID,
		Photos:            req.Photos,
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]ProductDetail{"product": toProductDetail(p)})
}

// HandleList handles GET /products/?skip=0&limit=10.
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", repository.DefaultLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	products, err := h.products.List(r.Context(), repository.ListOptions{Offset: skip, Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductList(products))
}

func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.products.ListByOwner)
}

func (h *ProductHandler) HandleListByMunicipality(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.products.ListByMunicipality)
}

func (h *ProductHandler) HandleListByAssociation(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.products.ListByAssociation)
}

func (h *ProductHandler) writeList(w http.ResponseWriter, r *http.Request,
	find func(ctx context.Context, userID string) ([]model.Product, error)) {
	products, err := find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductList(products))
}

// HandleUpdate handles PUT /products/{id}: a partial update of any field but
// the reference.
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := repository.ProductPatch{
		Title:        req.Title,
		Description:  req.Description,
		ProductIssue: req.ProductIssue,
		Marque:       req.Marque,
		Status:       req.Status,
		Photos:       req.Photos,
	}
	var err error
	if patch.UserID, err = optionalUUID("user_id", req.UserID); err != nil {
		writeError(w, err)
		return
	}
	if patch.MairieUserID, err = optionalUUID("mairie_user_id", req.MairieUserID); err != nil {
		writeError(w, err)
		return
	}
	if patch.AssociationUserID, err = optionalUUID("association_user_id", req.AssociationUserID); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.products.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) HandleUpdateAssociation(w http.ResponseWriter, r *http.Request) {
	var req updateAssociationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.products.AssignAssociation(r.Context(), chi.URLParam(r, "id"), req.AssociationUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// HandleMarkDeposed handles PUT /products/{id}/deposed. There is no body.
func (h *ProductHandler) HandleMarkDeposed(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.MarkDeposed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Produit supprimé avec succès."})
}

// optionalUUID parses an optional UUID field; nil and "" mean absent.
func optionalUUID(field string, s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, apperror.InvalidArgument(field, *s)
	}
	return &id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
