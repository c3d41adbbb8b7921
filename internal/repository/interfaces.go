package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/waitroom-api/internal/model"
)

type DoctorRepository interface {
	Create(ctx context.Context, doctor *model.Doctor) error
	Get(ctx context.Context, id int64) (*model.Doctor, error)
	List(ctx context.Context) ([]*model.Doctor, error)
}

type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdateName(ctx context.Context, id int64, name string) error
}

// QueueEntryRepository is the entry store. Every call is atomic on its own;
// concurrent writers are serialized upstream by the per-doctor mutation path.
type QueueEntryRepository interface {
	Create(ctx context.Context, entry *model.QueueEntry) error
	Get(ctx context.Context, id int64) (*model.QueueEntry, error)
	// GetScoped fetches an entry only when it belongs to the given doctor.
	GetScoped(ctx context.Context, id, doctorID int64) (*model.QueueEntry, error)
	// GetByPatientUUID returns the single entry for the patient whose status
	// is in statusIn, optionally scoped to a doctor (doctorID 0 means any).
	GetByPatientUUID(ctx context.Context, patientUUID uuid.UUID, doctorID int64, statusIn []model.EntryStatus) (*model.QueueEntry, error)
	// ListSnapshots returns the doctor's entries outside statusNotIn, joined
	// with patient data, ordered ascending by arrival.
	ListSnapshots(ctx context.Context, doctorID int64, statusNotIn []model.EntryStatus) ([]*model.EntrySnapshot, error)
	// ListHistory returns the doctor's entries inside statusIn, most recent
	// arrival first.
	ListHistory(ctx context.Context, doctorID int64, statusIn []model.EntryStatus) ([]*model.EntrySnapshot, error)
	UpdateStatus(ctx context.Context, id int64, status model.EntryStatus) error
	SetWhiteboardActive(ctx context.Context, id int64, active bool) error
	AppendWhiteboard(ctx context.Context, id int64, stroke string) error
	ClearWhiteboard(ctx context.Context, id int64) error
	GetWhiteboard(ctx context.Context, id int64) (string, error)
	// Delete removes the entry if it belongs to the doctor; reports whether a
	// row was removed.
	Delete(ctx context.Context, id, doctorID int64) (bool, error)
	// DeleteByStatus removes all of the doctor's entries whose status is in
	// statusIn and returns the count.
	DeleteByStatus(ctx context.Context, doctorID int64, statusIn []model.EntryStatus) (int64, error)
	// ExistsActive reports whether the (doctor, patient) pair already has an
	// entry in one of the given statuses.
	ExistsActive(ctx context.Context, doctorID, patientID int64, statusIn []model.EntryStatus) (bool, error)
	// PINExists checks the shared host/guest PIN namespace across all rows.
	PINExists(ctx context.Context, pin string) (bool, error)
}
