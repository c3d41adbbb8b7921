package model

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	StatusWaiting    EntryStatus = "Waiting"
	StatusInProgress EntryStatus = "In Progress"
	StatusInCall     EntryStatus = "In Call"
	StatusLeftCall   EntryStatus = "Left Call"
	StatusDone       EntryStatus = "Done"
	StatusCancelled  EntryStatus = "Cancelled"
)

// ActiveStatuses are the statuses shown on the live queue. At most one entry
// per (doctor, patient) pair may hold one of them at a time.
var ActiveStatuses = []EntryStatus{StatusWaiting, StatusInProgress, StatusInCall}

// TerminalStatuses are excluded from the live queue and eligible for purge.
var TerminalStatuses = []EntryStatus{StatusDone, StatusCancelled, StatusLeftCall}

func (s EntryStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusInCall, StatusLeftCall, StatusDone, StatusCancelled:
		return true
	}
	return false
}

func (s EntryStatus) Active() bool {
	return s == StatusWaiting || s == StatusInProgress || s == StatusInCall
}

// QueueEntry tracks one patient's visit through one doctor's queue.
// ArrivedAt is immutable and is the sole ordering key. The host and guest
// PINs share a single uniqueness namespace across all entries.
type QueueEntry struct {
	ID               int64       `db:"id" json:"id"`
	DoctorID         int64       `db:"doctor_id" json:"doctor_id"`
	PatientID        int64       `db:"patient_id" json:"patient_id"`
	Status           EntryStatus `db:"status" json:"status"`
	ArrivedAt        time.Time   `db:"arrived_at" json:"arrived_at"`
	HostPIN          string      `db:"host_pin" json:"host_pin"`
	GuestPIN         string      `db:"guest_pin" json:"guest_pin"`
	AddedByDoctor    bool        `db:"added_by_doctor" json:"added_by_doctor"`
	WhiteboardActive bool        `db:"whiteboard_active" json:"whiteboard_active"`
	WhiteboardData   string      `db:"whiteboard_data" json:"-"`
}

// EntrySnapshot is the joined row pushed to dashboards in waiting_list frames.
type EntrySnapshot struct {
	ID               int64       `db:"id" json:"id"`
	PatientName      string      `db:"patient_name" json:"patient_name"`
	PatientUUID      uuid.UUID   `db:"patient_uuid" json:"patient_uuid"`
	Status           EntryStatus `db:"status" json:"status"`
	ArrivedAt        time.Time   `db:"arrived_at" json:"arrived_at"`
	DoctorID         int64       `db:"doctor_id" json:"doctor_id"`
	HostPIN          string      `db:"host_pin" json:"host_pin"`
	GuestPIN         string      `db:"guest_pin" json:"guest_pin"`
	AddedByDoctor    bool        `db:"added_by_doctor" json:"added_by_doctor"`
	WhiteboardActive bool        `db:"whiteboard_active" json:"whiteboard_active"`
}
