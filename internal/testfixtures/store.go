// Package testfixtures provides in-memory repository implementations with the
// same contract as the postgres ones, for tests that should not need a
// database.
package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

type MemoryStore struct {
	mu          sync.Mutex
	doctors     map[int64]*model.Doctor
	patients    map[int64]*model.Patient
	entries     map[int64]*model.QueueEntry
	nextDoctor  int64
	nextPatient int64
	nextEntry   int64
	clock       time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:  map[int64]*model.Doctor{},
		patients: map[int64]*model.Patient{},
		entries:  map[int64]*model.QueueEntry{},
		clock:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *MemoryStore) DoctorRepo() repository.DoctorRepository {
	return &memDoctorRepo{s: s}
}

func (s *MemoryStore) PatientRepo() repository.PatientRepository {
	return &memPatientRepo{s: s}
}

func (s *MemoryStore) EntryRepo() repository.QueueEntryRepository {
	return &memEntryRepo{s: s}
}

// AddDoctor seeds a doctor and returns it.
func (s *MemoryStore) AddDoctor(name string) *model.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDoctor++
	d := &model.Doctor{ID: s.nextDoctor, Name: name}
	s.doctors[d.ID] = d
	return d
}

// Entry returns a copy of a stored entry, or nil.
func (s *MemoryStore) Entry(id int64) *model.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// tick hands out strictly increasing arrival timestamps.
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func entryStatusIn(status model.EntryStatus, set []model.EntryStatus) bool {
	for _, st := range set {
		if st == status {
			return true
		}
	}
	return false
}

type memDoctorRepo struct{ s *MemoryStore }

func (r *memDoctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextDoctor++
	doctor.ID = r.s.nextDoctor
	cp := *doctor
	r.s.doctors[doctor.ID] = &cp
	return nil
}

func (r *memDoctorRepo) Get(_ context.Context, id int64) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	cp := *d
	return &cp, nil
}

func (r *memDoctorRepo) List(_ context.Context) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memPatientRepo struct{ s *MemoryStore }

func (r *memPatientRepo) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextPatient++
	patient.ID = r.s.nextPatient
	cp := *patient
	r.s.patients[patient.ID] = &cp
	return nil
}

func (r *memPatientRepo) GetByUUID(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if p.UUID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *memPatientRepo) UpdateName(_ context.Context, id int64, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return apperrors.NotFound("patient", nil)
	}
	p.Name = name
	return nil
}

type memEntryRepo struct{ s *MemoryStore }

func (r *memEntryRepo) Create(_ context.Context, entry *model.QueueEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextEntry++
	entry.ID = r.s.nextEntry
	entry.ArrivedAt = r.s.tick()
	cp := *entry
	r.s.entries[entry.ID] = &cp
	return nil
}

func (r *memEntryRepo) Get(_ context.Context, id int64) (*model.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, apperrors.NotFound("queue entry", nil)
	}
	cp := *e
	return &cp, nil
}

func (r *memEntryRepo) GetScoped(_ context.Context, id, doctorID int64) (*model.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok || e.DoctorID != doctorID {
		return nil, apperrors.NotFound("queue entry", nil)
	}
	cp := *e
	return &cp, nil
}

func (r *memEntryRepo) GetByPatientUUID(_ context.Context, patientUUID uuid.UUID, doctorID int64, statusIn []model.EntryStatus) (*model.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var match *model.QueueEntry
	for _, e := range r.s.entries {
		p, ok := r.s.patients[e.PatientID]
		if !ok || p.UUID != patientUUID {
			continue
		}
		if doctorID != 0 && e.DoctorID != doctorID {
			continue
		}
		if len(statusIn) > 0 && !entryStatusIn(e.Status, statusIn) {
			continue
		}
		if match == nil || e.ArrivedAt.Before(match.ArrivedAt) {
			match = e
		}
	}
	if match == nil {
		return nil, apperrors.NotFound("queue entry", nil)
	}
	cp := *match
	return &cp, nil
}

func (r *memEntryRepo) snapshots(doctorID int64, keep func(model.EntryStatus) bool, desc bool) []*model.EntrySnapshot {
	out := []*model.EntrySnapshot{}
	for _, e := range r.s.entries {
		if e.DoctorID != doctorID || !keep(e.Status) {
			continue
		}
		p := r.s.patients[e.PatientID]
		out = append(out, &model.EntrySnapshot{
			ID:               e.ID,
			PatientName:      p.Name,
			PatientUUID:      p.UUID,
			Status:           e.Status,
			ArrivedAt:        e.ArrivedAt,
			DoctorID:         e.DoctorID,
			HostPIN:          e.HostPIN,
			GuestPIN:         e.GuestPIN,
			AddedByDoctor:    e.AddedByDoctor,
			WhiteboardActive: e.WhiteboardActive,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ArrivedAt.After(out[j].ArrivedAt)
		}
		return out[i].ArrivedAt.Before(out[j].ArrivedAt)
	})
	return out
}

func (r *memEntryRepo) ListSnapshots(_ context.Context, doctorID int64, statusNotIn []model.EntryStatus) ([]*model.EntrySnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.snapshots(doctorID, func(st model.EntryStatus) bool { return !entryStatusIn(st, statusNotIn) }, false), nil
}

func (r *memEntryRepo) ListHistory(_ context.Context, doctorID int64, statusInSet []model.EntryStatus) ([]*model.EntrySnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.snapshots(doctorID, func(st model.EntryStatus) bool { return entryStatusIn(st, statusInSet) }, true), nil
}

func (r *memEntryRepo) UpdateStatus(_ context.Context, id int64, status model.EntryStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return apperrors.NotFound("queue entry", nil)
	}
	e.Status = status
	return nil
}

func (r *memEntryRepo) SetWhiteboardActive(_ context.Context, id int64, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return apperrors.NotFound("queue entry", nil)
	}
	e.WhiteboardActive = active
	return nil
}

func (r *memEntryRepo) AppendWhiteboard(_ context.Context, id int64, stroke string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return apperrors.NotFound("queue entry", nil)
	}
	e.WhiteboardData += stroke + "\n"
	return nil
}

func (r *memEntryRepo) ClearWhiteboard(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return apperrors.NotFound("queue entry", nil)
	}
	e.WhiteboardData = ""
	return nil
}

func (r *memEntryRepo) GetWhiteboard(_ context.Context, id int64) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return "", apperrors.NotFound("queue entry", nil)
	}
	return e.WhiteboardData, nil
}

func (r *memEntryRepo) Delete(_ context.Context, id, doctorID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok || e.DoctorID != doctorID {
		return false, nil
	}
	delete(r.s.entries, id)
	return true, nil
}

func (r *memEntryRepo) DeleteByStatus(_ context.Context, doctorID int64, statusInSet []model.EntryStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.entries {
		if e.DoctorID == doctorID && entryStatusIn(e.Status, statusInSet) {
			delete(r.s.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *memEntryRepo) ExistsActive(_ context.Context, doctorID, patientID int64, statusInSet []model.EntryStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.DoctorID == doctorID && e.PatientID == patientID && entryStatusIn(e.Status, statusInSet) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memEntryRepo) PINExists(_ context.Context, pin string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.HostPIN == pin || e.GuestPIN == pin {
			return true, nil
		}
	}
	return false, nil
}
