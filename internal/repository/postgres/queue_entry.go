package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

const snapshotColumns = `
	e.id, p.name AS patient_name, p.uuid AS patient_uuid, e.status,
	e.arrived_at, e.doctor_id, e.host_pin, e.guest_pin, e.added_by_doctor,
	e.whiteboard_active`

type queueEntryRepository struct {
	db *sqlx.DB
}

func NewQueueEntryRepository(db *sqlx.DB) repository.QueueEntryRepository {
	return &queueEntryRepository{db: db}
}

func (r *queueEntryRepository) Create(ctx context.Context, entry *model.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (doctor_id, patient_id, status, host_pin, guest_pin, added_by_doctor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, arrived_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entry.DoctorID,
		entry.PatientID,
		entry.Status,
		entry.HostPIN,
		entry.GuestPIN,
		entry.AddedByDoctor,
	).Scan(&entry.ID, &entry.ArrivedAt)
	if err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}
	return nil
}

func (r *queueEntryRepository) Get(ctx context.Context, id int64) (*model.QueueEntry, error) {
	query := `SELECT * FROM queue_entries WHERE id = $1`
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queue entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueEntryRepository) GetScoped(ctx context.Context, id, doctorID int64) (*model.QueueEntry, error) {
	query := `SELECT * FROM queue_entries WHERE id = $1 AND doctor_id = $2`
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, query, id, doctorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queue entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueEntryRepository) GetByPatientUUID(ctx context.Context, patientUUID uuid.UUID, doctorID int64, statusIn []model.EntryStatus) (*model.QueueEntry, error) {
	query := `
		SELECT e.* FROM queue_entries e
		JOIN patients p ON p.id = e.patient_id
		WHERE p.uuid = ?
	`
	args := []interface{}{patientUUID}
	if doctorID != 0 {
		query += ` AND e.doctor_id = ?`
		args = append(args, doctorID)
	}
	if len(statusIn) > 0 {
		query += ` AND e.status IN (?)`
		args = append(args, statusIn)
	}
	query += ` ORDER BY e.arrived_at LIMIT 1`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	var entry model.QueueEntry
	err = r.db.GetContext(ctx, &entry, query, inArgs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queue entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry by patient: %w", err)
	}
	return &entry, nil
}

func (r *queueEntryRepository) ListSnapshots(ctx context.Context, doctorID int64, statusNotIn []model.EntryStatus) ([]*model.EntrySnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM queue_entries e
		JOIN patients p ON p.id = e.patient_id
		WHERE e.doctor_id = ?
	`
	args := []interface{}{doctorID}
	if len(statusNotIn) > 0 {
		query += ` AND e.status NOT IN (?)`
		args = append(args, statusNotIn)
	}
	query += ` ORDER BY e.arrived_at`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	snapshots := []*model.EntrySnapshot{}
	if err := r.db.SelectContext(ctx, &snapshots, query, inArgs...); err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return snapshots, nil
}

func (r *queueEntryRepository) ListHistory(ctx context.Context, doctorID int64, statusIn []model.EntryStatus) ([]*model.EntrySnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM queue_entries e
		JOIN patients p ON p.id = e.patient_id
		WHERE e.doctor_id = ? AND e.status IN (?)
		ORDER BY e.arrived_at DESC
	`
	query, inArgs, err := sqlx.In(query, doctorID, statusIn)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	snapshots := []*model.EntrySnapshot{}
	if err := r.db.SelectContext(ctx, &snapshots, query, inArgs...); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return snapshots, nil
}

func (r *queueEntryRepository) UpdateStatus(ctx context.Context, id int64, status model.EntryStatus) error {
	query := `UPDATE queue_entries SET status = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("queue entry", nil)
	}
	return nil
}

func (r *queueEntryRepository) SetWhiteboardActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE queue_entries SET whiteboard_active = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, active, id); err != nil {
		return fmt.Errorf("failed to set whiteboard flag: %w", err)
	}
	return nil
}

func (r *queueEntryRepository) AppendWhiteboard(ctx context.Context, id int64, stroke string) error {
	query := `UPDATE queue_entries SET whiteboard_data = whiteboard_data || $1 || E'\n' WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, stroke, id); err != nil {
		return fmt.Errorf("failed to append whiteboard stroke: %w", err)
	}
	return nil
}

func (r *queueEntryRepository) ClearWhiteboard(ctx context.Context, id int64) error {
	query := `UPDATE queue_entries SET whiteboard_data = '' WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to clear whiteboard: %w", err)
	}
	return nil
}

func (r *queueEntryRepository) GetWhiteboard(ctx context.Context, id int64) (string, error) {
	query := `SELECT whiteboard_data FROM queue_entries WHERE id = $1`
	var data string
	err := r.db.GetContext(ctx, &data, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("queue entry", err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get whiteboard: %w", err)
	}
	return data, nil
}

func (r *queueEntryRepository) Delete(ctx context.Context, id, doctorID int64) (bool, error) {
	query := `DELETE FROM queue_entries WHERE id = $1 AND doctor_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, doctorID)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *queueEntryRepository) DeleteByStatus(ctx context.Context, doctorID int64, statusIn []model.EntryStatus) (int64, error) {
	query, inArgs, err := sqlx.In(
		`DELETE FROM queue_entries WHERE doctor_id = ? AND status IN (?)`,
		doctorID, statusIn,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	res, err := r.db.ExecContext(ctx, query, inArgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

func (r *queueEntryRepository) ExistsActive(ctx context.Context, doctorID, patientID int64, statusIn []model.EntryStatus) (bool, error) {
	query, inArgs, err := sqlx.In(
		`SELECT EXISTS (SELECT 1 FROM queue_entries WHERE doctor_id = ? AND patient_id = ? AND status IN (?))`,
		doctorID, patientID, statusIn,
	)
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, inArgs...); err != nil {
		return false, fmt.Errorf("failed to check active entry: %w", err)
	}
	return exists, nil
}

func (r *queueEntryRepository) PINExists(ctx context.Context, pin string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM queue_entries WHERE host_pin = $1 OR guest_pin = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, pin); err != nil {
		return false, fmt.Errorf("failed to check pin: %w", err)
	}
	return exists, nil
}
