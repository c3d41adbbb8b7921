package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventshandler "github.com/jwalitptl/waitroom-api/internal/handler/events"
	"github.com/jwalitptl/waitroom-api/internal/hub"
	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/internal/testfixtures"
)

type recordingSubscriber struct {
	signals []model.Signal
}

func (r *recordingSubscriber) Notify(sig model.Signal) {
	r.signals = append(r.signals, sig)
}

type sinkEnv struct {
	router *gin.Engine
	store  *testfixtures.MemoryStore
	svc    queue.Service
	hub    *hub.MemoryHub
}

func newSinkEnv(t *testing.T) *sinkEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testfixtures.NewMemoryStore()
	svc := queue.NewService(
		store.DoctorRepo(),
		store.PatientRepo(),
		store.EntryRepo(),
		queue.NewPINGenerator(store.EntryRepo()),
		zerolog.Nop(),
	)
	h := hub.NewMemoryHub(zerolog.Nop())

	r := gin.New()
	eventshandler.NewHandler(svc, store.EntryRepo(), h, zerolog.Nop()).RegisterRoutes(r.Group("/events/v1"))
	return &sinkEnv{router: r, store: store, svc: svc, hub: h}
}

func (e *sinkEnv) post(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/v1/sink", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func (e *sinkEnv) postEvent(t *testing.T, event model.ProviderEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return e.post(t, body)
}

func TestSinkGuestConnectedMovesToInCall(t *testing.T) {
	env := newSinkEnv(t)
	doc := env.store.AddDoctor("House")
	res, err := env.svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	sub := &recordingSubscriber{}
	env.hub.Join(doc.ID, sub)

	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantConnected,
		Data: model.ProviderEventData{
			DestinationAlias: res.PatientUUID.String(),
			DisplayName:      "Alice",
			Role:             model.RoleGuest,
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusInCall, env.store.Entry(res.Entry.ID).Status)
	require.Len(t, sub.signals, 1)
	assert.Equal(t, model.SignalRefresh, sub.signals[0].Kind)
}

func TestSinkHostConnectedIsIgnored(t *testing.T) {
	env := newSinkEnv(t)
	doc := env.store.AddDoctor("House")
	res, err := env.svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantConnected,
		Data: model.ProviderEventData{
			DestinationAlias: res.PatientUUID.String(),
			DisplayName:      "Dr. House",
			Role:             model.RoleHost,
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusWaiting, env.store.Entry(res.Entry.ID).Status)
}

func TestSinkGuestDisconnectedMovesToLeftCall(t *testing.T) {
	env := newSinkEnv(t)
	doc := env.store.AddDoctor("House")
	res, err := env.svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantConnected,
		Data:  model.ProviderEventData{DestinationAlias: res.PatientUUID.String(), Role: model.RoleGuest},
	})
	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantDisconnected,
		Data:  model.ProviderEventData{DestinationAlias: res.PatientUUID.String(), Role: model.RoleGuest},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusLeftCall, env.store.Entry(res.Entry.ID).Status)
}

func TestSinkConferenceEndedMovesToLeftCall(t *testing.T) {
	env := newSinkEnv(t)
	doc := env.store.AddDoctor("House")
	res, err := env.svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventConferenceEnded,
		Data:  model.ProviderEventData{DestinationAlias: res.PatientUUID.String()},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusLeftCall, env.store.Entry(res.Entry.ID).Status)
}

func TestSinkDoesNotReopenTerminalEntries(t *testing.T) {
	env := newSinkEnv(t)
	doc := env.store.AddDoctor("House")
	res, err := env.svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	_, err = env.svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)

	sub := &recordingSubscriber{}
	env.hub.Join(doc.ID, sub)

	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantConnected,
		Data:  model.ProviderEventData{DestinationAlias: res.PatientUUID.String(), Role: model.RoleGuest},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusDone, env.store.Entry(res.Entry.ID).Status)
	assert.Empty(t, sub.signals)
}

func TestSinkAcksUnknownAlias(t *testing.T) {
	env := newSinkEnv(t)

	w := env.postEvent(t, model.ProviderEvent{
		Event: model.EventParticipantConnected,
		Data:  model.ProviderEventData{DestinationAlias: "not-a-uuid", Role: model.RoleGuest},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSinkAcksUnknownEventAndMalformedBody(t *testing.T) {
	env := newSinkEnv(t)

	w := env.postEvent(t, model.ProviderEvent{Event: "participant_muted"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.post(t, []byte("{not json"))
	assert.Equal(t, http.StatusOK, w.Code)
}
