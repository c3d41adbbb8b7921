package policy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	policyhandler "github.com/jwalitptl/waitroom-api/internal/handler/policy"
	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/service/policy"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/internal/testfixtures"
)

func newRouter(t *testing.T) (*gin.Engine, *testfixtures.MemoryStore, queue.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testfixtures.NewMemoryStore()
	queueSvc := queue.NewService(
		store.DoctorRepo(),
		store.PatientRepo(),
		store.EntryRepo(),
		queue.NewPINGenerator(store.EntryRepo()),
		zerolog.Nop(),
	)
	policySvc := policy.NewService(
		store.EntryRepo(),
		store.PatientRepo(),
		store.DoctorRepo(),
		policy.DefaultHostPrefix,
		zerolog.Nop(),
	)

	r := gin.New()
	policyhandler.NewHandler(policySvc).RegisterRoutes(r.Group("/policy/v1"))
	return r, store, queueSvc
}

func lookup(t *testing.T, r *gin.Engine, alias, displayName, role string) (*httptest.ResponseRecorder, model.PolicyResponse) {
	t.Helper()
	q := url.Values{}
	q.Set("local_alias", alias)
	q.Set("remote_display_name", displayName)
	q.Set("role", role)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/policy/v1/service/configuration?"+q.Encode(), nil)
	r.ServeHTTP(w, req)

	var resp model.PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestServiceConfigurationContinue(t *testing.T) {
	r, store, queueSvc := newRouter(t)
	doc := store.AddDoctor("House")
	res, err := queueSvc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	w, resp := lookup(t, r, res.PatientUUID.String(), "Alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ActionContinue, resp.Action)
	require.NotNil(t, resp.Result)
	assert.Equal(t, res.Entry.HostPIN, resp.Result.PIN)
	assert.Equal(t, res.Entry.GuestPIN, resp.Result.GuestPIN)
	assert.Contains(t, resp.Result.Name, "Alice")
}

func TestServiceConfigurationRejectsUnknownAlias(t *testing.T) {
	r, _, _ := newRouter(t)

	w, resp := lookup(t, r, "9d1b35e0-0000-4000-8000-000000000000", "Bob", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ActionReject, resp.Action)
	require.NotNil(t, resp.Result)
	assert.Equal(t, model.CauseNoActiveConference, resp.Result.DisconnectCause)
}

func TestServiceConfigurationRejectsMalformedAlias(t *testing.T) {
	r, _, _ := newRouter(t)

	w, resp := lookup(t, r, "not-a-uuid", "Bob", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ActionReject, resp.Action)
	require.NotNil(t, resp.Result)
	assert.Equal(t, model.CauseInvalidAlias, resp.Result.DisconnectCause)
}

func TestServiceConfigurationRejectsMissingAlias(t *testing.T) {
	r, _, _ := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/policy/v1/service/configuration", nil)
	r.ServeHTTP(w, req)

	var resp model.PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ActionReject, resp.Action)
}
