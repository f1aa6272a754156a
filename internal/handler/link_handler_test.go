package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/linkage-api/internal/dto"
	"github.com/noah-isme/linkage-api/internal/middleware"
	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/internal/service"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newLinkRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryIdentityRepository()
	require.NoError(t, store.Put(
		models.User{ID: "U1", Email: "parent@example.eg", Role: models.RoleParent},
		models.User{ID: "U2", Email: "dup@example.eg", Role: models.RoleParent},
		models.User{ID: "U3", Email: "dup@example.eg", Role: models.RoleParent},
		models.User{ID: "U4", Email: "teacher@example.eg", Role: models.RoleTeacher},
		models.ParentProfile{ID: "P1", UserID: "U1", FullName: "Hana"},
		models.TeacherProfile{ID: "T1", UserID: "U4", FullName: "Karim"},
		models.ChildProfile{ID: "C1", ParentID: "P1", FullName: "Amal"},
		models.ChildProfile{ID: "C2", ParentID: "P9", FullName: "Zayd"},
		models.Classroom{ID: "K1", TeacherID: "T1", Name: "Algebra"},
	))
	h := NewLinkHandler(service.NewResolverService(store, nil, nil), nil)

	router := gin.New()
	router.Use(middleware.WithResponseMeta("memory"))
	links := router.Group("/links")
	links.GET("/children", h.Children)
	links.GET("/classrooms", h.Classrooms)
	links.GET("/profile", h.Profile)
	links.GET("/children/:id/guardian", h.Guardian)
	links.GET("/classrooms/:id/teacher", h.Teacher)
	links.POST("/resolve", h.Resolve)
	return router
}

func serve(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLinkHandlerChildren(t *testing.T) {
	router := newLinkRouter(t)

	rec := serve(router, http.MethodGet, "/links/children?email=Parent@Example.eg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var children []models.ChildProfile
	require.NoError(t, json.Unmarshal(env.Data, &children))
	assert.Equal(t, []models.ChildProfile{{ID: "C1", ParentID: "P1", FullName: "Amal"}}, children)
	assert.Equal(t, "memory", env.Meta["store_backend"])
}

func TestLinkHandlerErrors(t *testing.T) {
	router := newLinkRouter(t)
	cases := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing email", "/links/children", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed email", "/links/children?email=nope", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown user", "/links/children?email=ghost@example.eg", http.StatusNotFound, "REFERENCE_NOT_FOUND"},
		{"duplicate email", "/links/children?email=dup@example.eg", http.StatusConflict, "AMBIGUOUS_REFERENCE"},
		{"parent has no classrooms", "/links/classrooms?email=parent@example.eg", http.StatusNotFound, "REFERENCE_NOT_FOUND"},
		{"dangling guardian", "/links/children/C2/guardian", http.StatusNotFound, "REFERENCE_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, tc.target, nil)
			require.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}

	rec := serve(router, http.MethodGet, "/links/children/C2/guardian", nil)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Message, "hop 2 (Profile)")
}

func TestLinkHandlerReverseLookups(t *testing.T) {
	router := newLinkRouter(t)

	rec := serve(router, http.MethodGet, "/links/children/C1/guardian", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &user))
	assert.Equal(t, models.ID("U1"), user.ID)

	rec = serve(router, http.MethodGet, "/links/classrooms/K1/teacher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &user))
	assert.Equal(t, "teacher@example.eg", user.Email)

	rec = serve(router, http.MethodGet, "/links/classrooms?email=teacher@example.eg", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/links/profile?email=teacher@example.eg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		EntityType string                `json:"entityType"`
		Profile    models.TeacherProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &profile))
	assert.Equal(t, "TeacherProfile", profile.EntityType)
	assert.Equal(t, models.ID("T1"), profile.Profile.ID)
}

func TestLinkHandlerResolve(t *testing.T) {
	router := newLinkRouter(t)
	payload, err := json.Marshal(dto.ResolveRequest{
		Key: "P1",
		Hops: []dto.HopRequest{
			{Collection: string(models.CollectionParentProfiles), Field: models.FieldID},
			{Entity: "Children", Collection: string(models.CollectionChildProfiles), Field: models.FieldParentID, Source: models.FieldID, Many: true},
		},
	})
	require.NoError(t, err)

	rec := serve(router, http.MethodPost, "/links/resolve", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	var chain struct {
		Path  string `json:"path"`
		Steps []struct {
			Entity  string            `json:"entity"`
			Records []json.RawMessage `json:"records"`
		} `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &chain))
	assert.Equal(t, adHocPath, chain.Path)
	require.Len(t, chain.Steps, 2)
	assert.Equal(t, "Children", chain.Steps[1].Entity)
	assert.Len(t, chain.Steps[1].Records, 1)

	bad, err := json.Marshal(dto.ResolveRequest{
		Key:  "P1",
		Hops: []dto.HopRequest{{Collection: "students", Field: "id"}},
	})
	require.NoError(t, err)
	rec = serve(router, http.MethodPost, "/links/resolve", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/links/resolve", []byte(`{"key":"P1","hops":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
