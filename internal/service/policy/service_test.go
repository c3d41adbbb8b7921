package policy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/service/policy"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/internal/testfixtures"
)

type fixture struct {
	store  *testfixtures.MemoryStore
	queue  queue.Service
	policy policy.Service
	doctor *model.Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testfixtures.NewMemoryStore()
	doctor := store.AddDoctor("House")
	q := queue.NewService(
		store.DoctorRepo(),
		store.PatientRepo(),
		store.EntryRepo(),
		queue.NewPINGenerator(store.EntryRepo()),
		zerolog.Nop(),
	)
	p := policy.NewService(store.EntryRepo(), store.PatientRepo(), store.DoctorRepo(), "", zerolog.Nop())
	return &fixture{store: store, queue: q, policy: p, doctor: doctor}
}

func (f *fixture) join(t *testing.T, name string, status model.EntryStatus) *queue.CreateResult {
	t.Helper()
	res, err := f.queue.CreateEntry(context.Background(), f.doctor.ID, name, "", false)
	require.NoError(t, err)
	if status != model.StatusWaiting {
		_, err = f.queue.UpdateStatusByEntry(context.Background(), res.Entry.ID, f.doctor.ID, status)
		require.NoError(t, err)
	}
	return res
}

func TestResolveContinuesForWaitingGuest(t *testing.T) {
	f := newFixture(t)
	res := f.join(t, "Alice", model.StatusWaiting)

	resp := f.policy.Resolve(context.Background(), res.PatientUUID.String(), "Alice", "guest")
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, model.ActionContinue, resp.Action)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Dr. House's Room (Alice)", resp.Result.Name)
	assert.Equal(t, res.Entry.HostPIN, resp.Result.PIN)
	assert.Equal(t, res.Entry.GuestPIN, resp.Result.GuestPIN)
	assert.True(t, resp.Result.AllowGuests)
	assert.Equal(t, "best_effort", resp.Result.DirectMedia)
	assert.True(t, resp.Result.EnableOverlayText)
	assert.True(t, resp.Result.DisconnectOnHostDisconnect)
	assert.Equal(t, res.PatientUUID.String(), resp.Result.ServiceTag)
}

func TestResolveRejectsGuestForFinishedVisit(t *testing.T) {
	f := newFixture(t)
	res := f.join(t, "Alice", model.StatusDone)

	resp := f.policy.Resolve(context.Background(), res.PatientUUID.String(), "Alice", "guest")
	assert.Equal(t, model.ActionReject, resp.Action)
	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.Result.Disconnect)
	assert.Equal(t, model.CauseNoActiveConference, resp.Result.DisconnectCause)
}

func TestResolveRoleStatusSets(t *testing.T) {
	f := newFixture(t)

	// Host may not join while the patient is merely waiting.
	waiting := f.join(t, "Alice", model.StatusWaiting)
	resp := f.policy.Resolve(context.Background(), waiting.PatientUUID.String(), "Dr. House", "host")
	assert.Equal(t, model.ActionReject, resp.Action)

	inCall := f.join(t, "Bob", model.StatusInCall)
	resp = f.policy.Resolve(context.Background(), inCall.PatientUUID.String(), "Dr. House", "host")
	assert.Equal(t, model.ActionContinue, resp.Action)

	// Guest admission window closes once the call is live.
	resp = f.policy.Resolve(context.Background(), inCall.PatientUUID.String(), "Bob", "guest")
	assert.Equal(t, model.ActionReject, resp.Action)
}

func TestResolveInfersRoleFromHonorific(t *testing.T) {
	f := newFixture(t)
	res := f.join(t, "Alice", model.StatusInCall)

	// "Dr." prefix implies host; hosts are admitted to a live call.
	resp := f.policy.Resolve(context.Background(), res.PatientUUID.String(), "Dr. House", "")
	assert.Equal(t, model.ActionContinue, resp.Action)

	// Anyone else defaults to guest and is rejected at this stage.
	resp = f.policy.Resolve(context.Background(), res.PatientUUID.String(), "Alice", "")
	assert.Equal(t, model.ActionReject, resp.Action)
}

func TestResolveRejectsBadAlias(t *testing.T) {
	f := newFixture(t)

	resp := f.policy.Resolve(context.Background(), "", "Alice", "guest")
	assert.Equal(t, model.ActionReject, resp.Action)
	assert.Equal(t, model.CauseInvalidAlias, resp.Result.DisconnectCause)

	resp = f.policy.Resolve(context.Background(), "not-a-uuid", "Alice", "guest")
	assert.Equal(t, model.ActionReject, resp.Action)
	assert.Equal(t, model.CauseInvalidAlias, resp.Result.DisconnectCause)

	resp = f.policy.Resolve(context.Background(), uuid.New().String(), "Alice", "guest")
	assert.Equal(t, model.ActionReject, resp.Action)
	assert.Equal(t, model.CauseNoActiveConference, resp.Result.DisconnectCause)
}
