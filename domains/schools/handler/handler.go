package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sukuu-hq/sukuu/domains/schools/service"
	"github.com/sukuu-hq/sukuu/platform/logging"
)

// Handler exposes the school registry over JSON. All routes are platform-
// partition-only; the router guards them with tenant middleware.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("schools service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the registry endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{schoolID}", h.get)
	r.Patch("/{schoolID}", h.update)
	r.Delete("/{schoolID}", h.delete)
	r.Get("/{schoolID}/domains", h.listDomains)
	r.Post("/{schoolID}/domains", h.addDomain)
	r.Delete("/{schoolID}/domains/{domain}", h.removeDomain)
	return r
}

type schoolResponse struct {
	ID              uuid.UUID `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	ShortName       string    `json:"shortName,omitempty"`
	DisplayName     string    `json:"displayName"`
	EducationSystem string    `json:"educationSystem"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	City            string    `json:"city,omitempty"`
	RegionID        *int32    `json:"regionId,omitempty"`
	DistrictID      *int32    `json:"districtId,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toResponse(s service.School) schoolResponse {
	return schoolResponse{
		ID:              s.ID,
		Slug:            s.Slug,
		Name:            s.Name,
		ShortName:       s.ShortName,
		DisplayName:     s.DisplayName(),
		EducationSystem: string(s.EducationSystem),
		Email:           s.Email,
		Phone:           s.Phone,
		Address:         s.Address,
		City:            s.City,
		RegionID:        s.RegionID,
		DistrictID:      s.DistrictID,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type createRequest struct {
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	ShortName       string `json:"shortName"`
	EducationSystem string `json:"educationSystem"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	City            string `json:"city"`
	RegionID        *int32 `json:"regionId"`
	DistrictID      *int32 `json:"districtId"`
	PrimaryDomain   string `json:"primaryDomain"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	school, err := h.svc.Create(r.Context(), service.CreateInput{
		Slug:            req.Slug,
		Name:            req.Name,
		ShortName:       req.ShortName,
		EducationSystem: service.EducationSystem(req.EducationSystem),
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		City:            req.City,
		RegionID:        req.RegionID,
		DistrictID:      req.DistrictID,
		PrimaryDomain:   req.PrimaryDomain,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/schools/"+school.ID.String())
	writeJSON(w, http.StatusCreated, toResponse(school))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	opts := service.ListOptions{}
	opts.Page, _ = atoiQuery(r, "page")
	opts.PageSize, _ = atoiQuery(r, "pageSize")

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]schoolResponse, 0, len(result.Schools))
	for _, s := range result.Schools {
		items = append(items, toResponse(s))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalItems": result.TotalItems,
		"totalPages": result.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "schoolID")
	if !ok {
		return
	}

	school, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(school))
}

type updateRequest struct {
	Name            *string `json:"name"`
	ShortName       *string `json:"shortName"`
	EducationSystem *string `json:"educationSystem"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	City            *string `json:"city"`
	RegionID        *int32  `json:"regionId"`
	DistrictID      *int32  `json:"districtId"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "schoolID")
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateInput{
		Name:       req.Name,
		ShortName:  req.ShortName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		RegionID:   req.RegionID,
		DistrictID: req.DistrictID,
	}
	if req.EducationSystem != nil {
		system := service.EducationSystem(*req.EducationSystem)
		input.EducationSystem = &system
	}

	school, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(school))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "schoolID")
	if !ok {
		return
	}

	// Teardown drops the partition irreversibly; the confirm query parameter
	// must repeat the school slug.
	if err := h.svc.Delete(r.Context(), id, r.URL.Query().Get("confirm")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type domainRequest struct {
	Domain    string `json:"domain"`
	IsPrimary bool   `json:"isPrimary"`
}

func (h *Handler) addDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "schoolID")
	if !ok {
		return
	}

	var req domainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.AddDomain(r.Context(), service.Domain{
		Domain:    req.Domain,
		SchoolID:  id,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeDomain(w http.ResponseWriter, r *http.Request) {
	if _, ok := pathUUID(w, r, "schoolID"); !ok {
		return
	}

	if err := h.svc.RemoveDomain(r.Context(), chi.URLParam(r, "domain")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "schoolID")
	if !ok {
		return
	}

	domains, err := h.svc.ListDomains(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	items := make([]map[string]any, 0, len(domains))
	for _, d := range domains {
		items = append(items, map[string]any{"domain": d.Domain, "isPrimary": d.IsPrimary})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrDomainNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSlugConflict), errors.Is(err, service.ErrDomainConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConfirmationMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.FromRequest(r, h.logger).Error("schools handler failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
