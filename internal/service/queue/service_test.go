package queue_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/internal/testfixtures"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

func newService(t *testing.T) (queue.Service, *testfixtures.MemoryStore) {
	t.Helper()
	store := testfixtures.NewMemoryStore()
	svc := queue.NewService(
		store.DoctorRepo(),
		store.PatientRepo(),
		store.EntryRepo(),
		queue.NewPINGenerator(store.EntryRepo()),
		zerolog.Nop(),
	)
	return svc, store
}

func TestCreateEntryPatientSideJoin(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	require.True(t, res.Created)

	assert.Equal(t, model.StatusWaiting, res.Entry.Status)
	assert.False(t, res.Entry.AddedByDoctor)
	assert.NotEqual(t, uuid.Nil, res.PatientUUID)
	assert.Len(t, res.Entry.HostPIN, 6)
	assert.Len(t, res.Entry.GuestPIN, 6)
	assert.NotEqual(t, res.Entry.HostPIN, res.Entry.GuestPIN)

	list, err := svc.WaitingList(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].PatientName)
	assert.Equal(t, res.PatientUUID, list[0].PatientUUID)
}

func TestCreateEntryDoctorSideAddFlagsEntry(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Walk In", "", true)
	require.NoError(t, err)
	assert.True(t, res.Entry.AddedByDoctor)
}

func TestCreateEntryDuplicateJoinSuppressed(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	pid := uuid.New().String()

	first, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.PatientUUID, second.PatientUUID)

	list, err := svc.WaitingList(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateEntryRejoinAfterTerminalStatus(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	pid := uuid.New().String()

	first, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), first.Entry.ID, doc.ID, model.StatusCancelled)
	require.NoError(t, err)

	second, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)
	assert.True(t, second.Created)
}

func TestCreateEntryNameOnlyRejoinMintsNewIdentity(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	pid := uuid.New().String()

	first, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)

	second, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", true)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.PatientUUID, second.PatientUUID)
}

func TestCreateEntryUpdatesPatientName(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	pid := uuid.New().String()

	first, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", pid, false)
	require.NoError(t, err)
	_, err = svc.UpdateStatusByEntry(context.Background(), first.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)

	_, err = svc.CreateEntry(context.Background(), doc.ID, "Alice B.", pid, false)
	require.NoError(t, err)

	list, err := svc.WaitingList(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice B.", list[0].PatientName)
}

func TestCreateEntryValidation(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	_, err := svc.CreateEntry(context.Background(), doc.ID, "", "", false)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.CreateEntry(context.Background(), doc.ID, "Alice", "not-a-uuid", false)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidIdentifier))

	_, err = svc.CreateEntry(context.Background(), 999, "Alice", "", false)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestWaitingListOrderingAndFiltering(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	other := store.AddDoctor("Wilson")

	a, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	b, err := svc.CreateEntry(context.Background(), doc.ID, "Bob", "", false)
	require.NoError(t, err)
	_, err = svc.CreateEntry(context.Background(), other.ID, "Carol", "", false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), a.Entry.ID, doc.ID, model.StatusInProgress)
	require.NoError(t, err)
	_, err = svc.UpdateStatusByEntry(context.Background(), b.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)

	list, err := svc.WaitingList(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].PatientName)
	assert.Equal(t, doc.ID, list[0].DoctorID)

	c, err := svc.CreateEntry(context.Background(), doc.ID, "Dave", "", false)
	require.NoError(t, err)

	list, err = svc.WaitingList(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.Entry.ID, list[0].ID)
	assert.Equal(t, c.Entry.ID, list[1].ID)
	assert.True(t, list[0].ArrivedAt.Before(list[1].ArrivedAt))
}

func TestUpdateStatusByEntryIdempotentOnEqualStatus(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	changed, err := svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, model.StatusWaiting)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusInProgress, store.Entry(res.Entry.ID).Status)
}

func TestUpdateStatusByEntryScopedToDoctor(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	other := store.AddDoctor("Wilson")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, other.ID, model.StatusDone)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, "Broken")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestUpdateStatusByPatientRequiresCurrentSet(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)

	// A finished visit must not be reopened by a late provider event.
	_, err = svc.UpdateStatusByPatient(context.Background(), res.PatientUUID, 0, model.StatusLeftCall, model.ActiveStatuses)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, model.StatusDone, store.Entry(res.Entry.ID).Status)
}

func TestUpdateStatusByPatientTransitionsActiveEntry(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	_, err = svc.UpdateStatusByEntry(context.Background(), res.Entry.ID, doc.ID, model.StatusInProgress)
	require.NoError(t, err)

	changed, err := svc.UpdateStatusByPatient(context.Background(), res.PatientUUID, 0, model.StatusInCall, model.ActiveStatuses)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusInCall, store.Entry(res.Entry.ID).Status)

	// Doctor scope mismatch behaves like a missing entry.
	_, err = svc.UpdateStatusByPatient(context.Background(), res.PatientUUID, doc.ID+1, model.StatusCancelled, model.ActiveStatuses)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemoveEntry(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")
	other := store.AddDoctor("Wilson")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	err = svc.RemoveEntry(context.Background(), res.Entry.ID, other.ID)
	assert.True(t, apperrors.IsNotFound(err))
	require.NotNil(t, store.Entry(res.Entry.ID))

	err = svc.RemoveEntry(context.Background(), res.Entry.ID, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, store.Entry(res.Entry.ID))
}

func TestPurgeHistoryDeletesOnlyTerminalEntries(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	active, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	done, err := svc.CreateEntry(context.Background(), doc.ID, "Bob", "", false)
	require.NoError(t, err)
	left, err := svc.CreateEntry(context.Background(), doc.ID, "Carol", "", false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), done.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)
	_, err = svc.UpdateStatusByEntry(context.Background(), left.Entry.ID, doc.ID, model.StatusLeftCall)
	require.NoError(t, err)

	n, err := svc.PurgeHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotNil(t, store.Entry(active.Entry.ID))
	assert.Nil(t, store.Entry(done.Entry.ID))
	assert.Nil(t, store.Entry(left.Entry.ID))
}

func TestWhiteboardRoundTrip(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	res, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)

	err = svc.SetWhiteboardActive(context.Background(), res.PatientUUID, doc.ID, true)
	require.NoError(t, err)
	assert.True(t, store.Entry(res.Entry.ID).WhiteboardActive)

	s1 := json.RawMessage(`{"x":1,"y":2}`)
	s2 := json.RawMessage(`{"x":3,"y":4}`)
	require.NoError(t, svc.AppendWhiteboardStroke(context.Background(), res.PatientUUID, doc.ID, s1))
	require.NoError(t, svc.AppendWhiteboardStroke(context.Background(), res.PatientUUID, doc.ID, s2))

	history, err := svc.WhiteboardHistory(context.Background(), res.PatientUUID, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.JSONEq(t, string(s1), string(history[0]))
	assert.JSONEq(t, string(s2), string(history[1]))

	require.NoError(t, svc.ClearWhiteboard(context.Background(), res.PatientUUID, doc.ID))
	history, err = svc.WhiteboardHistory(context.Background(), res.PatientUUID, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryListsTerminalEntriesNewestFirst(t *testing.T) {
	svc, store := newService(t)
	doc := store.AddDoctor("House")

	first, err := svc.CreateEntry(context.Background(), doc.ID, "Alice", "", false)
	require.NoError(t, err)
	second, err := svc.CreateEntry(context.Background(), doc.ID, "Bob", "", false)
	require.NoError(t, err)

	_, err = svc.UpdateStatusByEntry(context.Background(), first.Entry.ID, doc.ID, model.StatusDone)
	require.NoError(t, err)
	_, err = svc.UpdateStatusByEntry(context.Background(), second.Entry.ID, doc.ID, model.StatusCancelled)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Entry.ID, history[0].ID)
	assert.Equal(t, first.Entry.ID, history[1].ID)
}
