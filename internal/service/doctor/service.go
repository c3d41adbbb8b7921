package doctor

import (
	"context"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

// Service covers the administrative side of the waiting room: doctors are
// created out-of-band and listed for the patient-facing join page.
type Service interface {
	CreateDoctor(ctx context.Context, name string) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	ListDoctors(ctx context.Context) ([]*model.Doctor, error)
	// History returns the doctor's closed visits, most recent arrival first.
	History(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error)
}

type service struct {
	doctors repository.DoctorRepository
	entries repository.QueueEntryRepository
}

func NewService(doctors repository.DoctorRepository, entries repository.QueueEntryRepository) Service {
	return &service{doctors: doctors, entries: entries}
}

func (s *service) CreateDoctor(ctx context.Context, name string) (*model.Doctor, error) {
	if name == "" {
		return nil, apperrors.BadRequest("doctor name is required", nil)
	}
	doctor := &model.Doctor{Name: name}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

func (s *service) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	return s.doctors.Get(ctx, id)
}

func (s *service) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	return s.doctors.List(ctx)
}

func (s *service) History(ctx context.Context, doctorID int64) ([]*model.EntrySnapshot, error) {
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.entries.ListHistory(ctx, doctorID, model.TerminalStatuses)
}
