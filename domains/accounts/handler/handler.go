package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/logging"
	"github.com/sukuu-hq/sukuu/platform/persistence"
	"github.com/sukuu-hq/sukuu/platform/tenant"
)

// Handler exposes user management over JSON. Every route operates on the
// partition bound to the request context, so the same routes serve the
// platform host and every school host.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("accounts service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the user endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/platform-admins", h.createWith(h.svc.CreatePlatformAdmin))
	r.Post("/school-admins", h.createWith(h.svc.CreateSchoolAdmin))
	r.Post("/teachers", h.createWith(h.svc.CreateTeacher))
	r.Post("/students", h.createWith(h.svc.CreateStudent))
	r.Post("/parents", h.createWith(h.svc.CreateParent))
	r.Get("/{userID}", h.get)
	r.Patch("/{userID}", h.updateProfile)
	r.Post("/{userID}/password", h.changePassword)
	r.Post("/{userID}/activate", h.setActive(true))
	r.Post("/{userID}/deactivate", h.setActive(false))
	return r
}

type userResponse struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"fullName"`
	Role               string    `json:"role"`
	RoleLabel          string    `json:"roleLabel"`
	IsActive           bool      `json:"isActive"`
	MustChangePassword bool      `json:"mustChangePassword"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toResponse(u service.User, space tenant.Space) userResponse {
	role := service.RoleOf(u, space)
	return userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		Role:               string(role),
		RoleLabel:          role.Label(),
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

type createRequest struct {
	Email              string `json:"email"`
	FullName           string `json:"fullName"`
	Password           string `json:"password"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// createWith builds the handler for one role factory. The factories differ
// only in which flag they assign; the request shape is shared.
func (h *Handler) createWith(factory func(context.Context, service.CreateInput) (service.User, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := factory(r.Context(), service.CreateInput{
			Email:              req.Email,
			FullName:           req.FullName,
			Password:           req.Password,
			MustChangePassword: req.MustChangePassword,
		})
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		space, _ := tenant.MustFromContext(r.Context())
		writeJSON(w, http.StatusCreated, toResponse(user, space))
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	space, _ := tenant.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, toResponse(user, space))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := atoiQuery(r, "page")
	pageSize, _ := atoiQuery(r, "pageSize")

	result, err := h.svc.List(r.Context(), page, pageSize)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	space, _ := tenant.MustFromContext(r.Context())
	items := make([]userResponse, 0, len(result.Users))
	for _, u := range result.Users {
		items = append(items, toResponse(u, space))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalItems": result.TotalItems,
		"totalPages": result.TotalPages,
	})
}

type updateProfileRequest struct {
	FullName *string `json:"fullName"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), id, service.UpdateProfileInput{FullName: req.FullName})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	space, _ := tenant.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, toResponse(user, space))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "userID")
		if !ok {
			return
		}

		user, err := h.svc.SetActive(r.Context(), id, active)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		space, _ := tenant.MustFromContext(r.Context())
		writeJSON(w, http.StatusOK, toResponse(user, space))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": http.StatusUnprocessableEntity,
			"error":  "validation error",
			"fields": verr.Fields,
		})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrWrongPartition), errors.Is(err, persistence.ErrInvariantViolation):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, tenant.ErrNoActiveTenant):
		writeError(w, http.StatusServiceUnavailable, "no active tenant")
	default:
		logging.FromRequest(r, h.logger).Error("accounts handler failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
