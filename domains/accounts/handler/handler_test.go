package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sukuu-hq/sukuu/domains/accounts/handler"
	"github.com/sukuu-hq/sukuu/domains/accounts/repo"
	"github.com/sukuu-hq/sukuu/domains/accounts/service"
	"github.com/sukuu-hq/sukuu/platform/tenant"
	tenantmiddleware "github.com/sukuu-hq/sukuu/platform/tenant/middleware"
)

// hostResolver maps fixed hostnames to Spaces for routing tests.
type hostResolver struct{ spaces map[string]tenant.Space }

func (r *hostResolver) Resolve(ctx context.Context, host string) (tenant.Space, error) {
	space, ok := r.spaces[tenant.NormalizeHost(host)]
	if !ok {
		return tenant.Space{}, tenant.ErrTenantNotFound
	}
	return space, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	svc := service.New(repo.NewMemoryRepository())
	h := handler.New(svc, zaptest.NewLogger(t))

	schoolSpace := tenant.Space{
		SchoolID:   uuid.New(),
		Slug:       "st-marys",
		SchemaName: "dev__school_st_marys",
		RoleName:   "dev__school_st_marys_role",
	}
	resolver := &hostResolver{spaces: map[string]tenant.Space{
		"stmarys.edu.gh": schoolSpace,
		"sukuu.app":      tenant.PublicSpace("public"),
	}}

	r := chi.NewRouter()
	r.Use(tenantmiddleware.WithTenantHost(resolver))
	r.Mount("/users", h.Routes())
	return r
}

func doJSON(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateTeacherOnSchoolHost(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/teachers",
		`{"email":"teacher@st-marys.edu.gh","fullName":"Kwame Asante","password":"initial-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "teacher@st-marys.edu.gh", got["email"])
	require.Equal(t, "teacher", got["role"])
	require.Equal(t, "Teacher", got["roleLabel"])
	// The hash never leaves the service layer.
	require.NotContains(t, rec.Body.String(), "password")
}

func TestCreateTeacherOnPlatformHostIsForbidden(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://sukuu.app/users/teachers",
		`{"email":"teacher@sukuu.app","fullName":"X","password":"initial-pass"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePlatformAdminOnSchoolHostIsForbidden(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/platform-admins",
		`{"email":"admin@sukuu.app","fullName":"X","password":"initial-pass"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateValidationReturns422(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/teachers", `{"password":"short"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "email")
}

func TestUnknownHostIs404(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "http://unknown.example.org/users", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListIsPartitionScoped(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/teachers",
		`{"email":"teacher@st-marys.edu.gh","fullName":"Kwame Asante","password":"initial-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same routes on the platform host see an empty partition.
	rec = doJSON(t, srv, http.MethodGet, "http://sukuu.app/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var platformList struct {
		TotalItems int `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &platformList))
	require.Equal(t, 0, platformList.TotalItems)

	rec = doJSON(t, srv, http.MethodGet, "http://stmarys.edu.gh/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var schoolList struct {
		TotalItems int `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schoolList))
	require.Equal(t, 1, schoolList.TotalItems)
}

func TestChangePasswordFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/teachers",
		`{"email":"teacher@st-marys.edu.gh","fullName":"Kwame Asante","password":"initial-pass","mustChangePassword":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/"+created.ID.String()+"/password",
		`{"currentPassword":"wrong","newPassword":"rotated-pass"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "http://stmarys.edu.gh/users/"+created.ID.String()+"/password",
		`{"currentPassword":"initial-pass","newPassword":"rotated-pass"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "http://stmarys.edu.gh/users/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		MustChangePassword bool `json:"mustChangePassword"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.False(t, fetched.MustChangePassword)
}
