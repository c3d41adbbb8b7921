package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

// Service is the authoritative status-transition logic for queue entries.
// Every mutation, whether it came from a websocket command, a provider
// webhook or disconnect detection, goes through here. Broadcasting the
// resulting change is the caller's job.
type Service interface {
	// CreateEntry resolves or creates the patient and enqueues them in
	// Waiting. fromDoctor says the join came from the dashboard side; a
	// dashboard add without a patient-supplied uuid flags the entry as
	// doctor-added. A second join while an active entry exists is an
	// idempotent no-op reported through CreateResult.Created.
	CreateEntry(ctx context.Context, doctorID int64, patientName, patientUUID string, fromDoctor bool) (*CreateResult, error)
	WaitingList(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error)
	History(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error)
	// UpdateStatusByEntry overwrites the status of a doctor's entry. It
	// reports false without writing when the status already matches.
	UpdateStatusByEntry(ctx context.Context, entryID, doctorID int64, status model.EntryStatus) (bool, error)
	// UpdateStatusByPatient transitions the patient's entry, optionally
	// scoped to a doctor (0 means any) and restricted to entries whose
	// current status is in requireCurrent.
	UpdateStatusByPatient(ctx context.Context, patientUUID uuid.UUID, doctorID int64, status model.EntryStatus, requireCurrent []model.EntryStatus) (bool, error)
	RemoveEntry(ctx context.Context, entryID, doctorID int64) error
	// PurgeHistory deletes the doctor's terminal entries and returns the count.
	PurgeHistory(ctx context.Context, doctorID int64) (int64, error)

	// Whiteboard substate is advisory; callers log and swallow failures.
	SetWhiteboardActive(ctx context.Context, patientUUID uuid.UUID, doctorID int64, active bool) error
	AppendWhiteboardStroke(ctx context.Context, patientUUID uuid.UUID, doctorID int64, stroke json.RawMessage) error
	ClearWhiteboard(ctx context.Context, patientUUID uuid.UUID, doctorID int64) error
	WhiteboardHistory(ctx context.Context, patientUUID uuid.UUID, doctorID int64) ([]json.RawMessage, error)
}

// CreateResult reports what a join produced. PatientUUID is always set so a
// session can adopt its identity even on a suppressed duplicate join.
type CreateResult struct {
	Entry         *model.QueueEntry
	PatientUUID   uuid.UUID
	Created       bool
	AddedByDoctor bool
}

type service struct {
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	entries  repository.QueueEntryRepository
	pins     *PINGenerator
	logger   zerolog.Logger
}

func NewService(
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	entries repository.QueueEntryRepository,
	pins *PINGenerator,
	logger zerolog.Logger,
) Service {
	return &service{
		doctors:  doctors,
		patients: patients,
		entries:  entries,
		pins:     pins,
		logger:   logger.With().Str("component", "queue").Logger(),
	}
}

func (s *service) CreateEntry(ctx context.Context, doctorID int64, patientName, patientUUID string, fromDoctor bool) (*CreateResult, error) {
	if patientName == "" {
		return nil, apperrors.BadRequest("patient name is required", nil)
	}
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	patient, err := s.resolvePatient(ctx, patientName, patientUUID)
	if err != nil {
		return nil, err
	}
	addedByDoctor := fromDoctor && patientUUID == ""

	exists, err := s.entries.ExistsActive(ctx, doctorID, patient.ID, model.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info().
			Int64("doctor_id", doctorID).
			Str("patient_uuid", patient.UUID.String()).
			Msg("join suppressed, active entry already exists")
		return &CreateResult{PatientUUID: patient.UUID, Created: false, AddedByDoctor: addedByDoctor}, nil
	}

	hostPIN, guestPIN, err := s.pins.GeneratePair(ctx)
	if err != nil {
		return nil, err
	}

	entry := &model.QueueEntry{
		DoctorID:      doctorID,
		PatientID:     patient.ID,
		Status:        model.StatusWaiting,
		HostPIN:       hostPIN,
		GuestPIN:      guestPIN,
		AddedByDoctor: addedByDoctor,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("doctor_id", doctorID).
		Int64("entry_id", entry.ID).
		Str("patient_uuid", patient.UUID.String()).
		Bool("added_by_doctor", addedByDoctor).
		Msg("patient joined queue")

	return &CreateResult{
		Entry:         entry,
		PatientUUID:   patient.UUID,
		Created:       true,
		AddedByDoctor: addedByDoctor,
	}, nil
}

// resolvePatient applies the asymmetric identity rule: a uuid-bearing join
// reuses (or creates) that identity and refreshes the display name, while a
// name-only join always mints a fresh patient, even if the name is already
// taken by a uuid-bearing one.
func (s *service) resolvePatient(ctx context.Context, name, rawUUID string) (*model.Patient, error) {
	if rawUUID == "" {
		patient := &model.Patient{UUID: uuid.New(), Name: name}
		if err := s.patients.Create(ctx, patient); err != nil {
			return nil, err
		}
		return patient, nil
	}

	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, apperrors.InvalidIdentifier("invalid patient uuid", err)
	}

	patient, err := s.patients.GetByUUID(ctx, id)
	if apperrors.IsNotFound(err) {
		patient = &model.Patient{UUID: id, Name: name}
		if err := s.patients.Create(ctx, patient); err != nil {
			return nil, err
		}
		return patient, nil
	}
	if err != nil {
		return nil, err
	}

	if patient.Name != name {
		if err := s.patients.UpdateName(ctx, patient.ID, name); err != nil {
			return nil, err
		}
		patient.Name = name
	}
	return patient, nil
}

func (s *service) WaitingList(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error) {
	return s.entries.ListSnapshots(ctx, doctorID, model.TerminalStatuses)
}

func (s *service) History(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error) {
	return s.entries.ListHistory(ctx, doctorID, model.TerminalStatuses)
}

func (s *service) UpdateStatusByEntry(ctx context.Context, entryID, doctorID int64, status model.EntryStatus) (bool, error) {
	if !status.Valid() {
		return false, apperrors.BadRequest("invalid status", nil)
	}

	entry, err := s.entries.GetScoped(ctx, entryID, doctorID)
	if err != nil {
		return false, err
	}
	if entry.Status == status {
		return false, nil
	}

	if err := s.entries.UpdateStatus(ctx, entry.ID, status); err != nil {
		return false, err
	}
	s.logger.Info().
		Int64("entry_id", entry.ID).
		Str("from", string(entry.Status)).
		Str("to", string(status)).
		Msg("entry status updated")
	return true, nil
}

func (s *service) UpdateStatusByPatient(ctx context.Context, patientUUID uuid.UUID, doctorID int64, status model.EntryStatus, requireCurrent []model.EntryStatus) (bool, error) {
	if !status.Valid() {
		return false, apperrors.BadRequest("invalid status", nil)
	}

	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, doctorID, requireCurrent)
	if err != nil {
		return false, err
	}
	if entry.Status == status {
		return false, nil
	}

	if err := s.entries.UpdateStatus(ctx, entry.ID, status); err != nil {
		return false, err
	}
	s.logger.Info().
		Int64("entry_id", entry.ID).
		Str("patient_uuid", patientUUID.String()).
		Str("from", string(entry.Status)).
		Str("to", string(status)).
		Msg("entry status updated")
	return true, nil
}

func (s *service) RemoveEntry(ctx context.Context, entryID, doctorID int64) error {
	deleted, err := s.entries.Delete(ctx, entryID, doctorID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("queue entry", nil)
	}
	s.logger.Info().Int64("entry_id", entryID).Int64("doctor_id", doctorID).Msg("entry removed")
	return nil
}

func (s *service) PurgeHistory(ctx context.Context, doctorID int64) (int64, error) {
	n, err := s.entries.DeleteByStatus(ctx, doctorID, model.TerminalStatuses)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("doctor_id", doctorID).Int64("deleted", n).Msg("history purged")
	return n, nil
}

func (s *service) SetWhiteboardActive(ctx context.Context, patientUUID uuid.UUID, doctorID int64, active bool) error {
	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, doctorID, model.ActiveStatuses)
	if err != nil {
		return err
	}
	return s.entries.SetWhiteboardActive(ctx, entry.ID, active)
}

func (s *service) AppendWhiteboardStroke(ctx context.Context, patientUUID uuid.UUID, doctorID int64, stroke json.RawMessage) error {
	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, doctorID, model.ActiveStatuses)
	if err != nil {
		return err
	}
	return s.entries.AppendWhiteboard(ctx, entry.ID, string(stroke))
}

func (s *service) ClearWhiteboard(ctx context.Context, patientUUID uuid.UUID, doctorID int64) error {
	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, doctorID, model.ActiveStatuses)
	if err != nil {
		return err
	}
	return s.entries.ClearWhiteboard(ctx, entry.ID)
}

func (s *service) WhiteboardHistory(ctx context.Context, patientUUID uuid.UUID, doctorID int64) ([]json.RawMessage, error) {
	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, doctorID, model.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	blob, err := s.entries.GetWhiteboard(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	return splitStrokes(blob), nil
}

// splitStrokes turns the stored newline-delimited blob back into the
// individual drawing commands.
func splitStrokes(blob string) []json.RawMessage {
	strokes := []json.RawMessage{}
	start := 0
	for i := 0; i < len(blob); i++ {
		if blob[i] == '\n' {
			if i > start {
				strokes = append(strokes, json.RawMessage(blob[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(blob) {
		strokes = append(strokes, json.RawMessage(blob[start:]))
	}
	return strokes
}
