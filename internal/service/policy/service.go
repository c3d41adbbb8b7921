package policy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
)

// DefaultHostPrefix is the display-name honorific that implies the host role
// when the provider omits an explicit role parameter.
const DefaultHostPrefix = "Dr."

// Statuses under which each role may be admitted. A guest joins before or
// while the doctor prepares the call; a host joins once the call is underway.
var (
	guestStatuses = []model.EntryStatus{model.StatusWaiting, model.StatusInProgress}
	hostStatuses  = []model.EntryStatus{model.StatusInProgress, model.StatusInCall}
)

// Service answers the provider's pre-call service-configuration lookup. The
// logical outcome lives solely in the action field; callers must put it on
// the wire with a 200 regardless.
type Service interface {
	Resolve(ctx context.Context, localAlias, displayName, role string) *model.PolicyResponse
}

type service struct {
	entries    repository.QueueEntryRepository
	patients   repository.PatientRepository
	doctors    repository.DoctorRepository
	hostPrefix string
	// Doctor names are immutable, so a short TTL cache spares a lookup on
	// every provider poll.
	doctorNames *gocache.Cache
	logger      zerolog.Logger
}

func NewService(entries repository.QueueEntryRepository, patients repository.PatientRepository, doctors repository.DoctorRepository, hostPrefix string, logger zerolog.Logger) Service {
	if hostPrefix == "" {
		hostPrefix = DefaultHostPrefix
	}
	return &service{
		entries:     entries,
		patients:    patients,
		doctors:     doctors,
		hostPrefix:  hostPrefix,
		doctorNames: gocache.New(5*time.Minute, 10*time.Minute),
		logger:      logger.With().Str("component", "policy").Logger(),
	}
}

func (s *service) Resolve(ctx context.Context, localAlias, displayName, role string) *model.PolicyResponse {
	if localAlias == "" {
		s.logger.Warn().Msg("policy lookup without local_alias")
		return reject(model.CauseInvalidAlias, "missing conference alias")
	}

	patientUUID, err := uuid.Parse(localAlias)
	if err != nil {
		s.logger.Warn().Str("local_alias", localAlias).Msg("policy lookup with malformed alias")
		return reject(model.CauseInvalidAlias, "invalid patient ID (UUID) provided as conference alias")
	}

	role = s.inferRole(role, displayName)
	statuses := guestStatuses
	if role == model.RoleHost {
		statuses = hostStatuses
	}

	entry, err := s.entries.GetByPatientUUID(ctx, patientUUID, 0, statuses)
	if apperrors.IsNotFound(err) {
		s.logger.Info().
			Str("local_alias", localAlias).
			Str("role", role).
			Msg("no admissible entry for alias, rejecting conference")
		return reject(model.CauseNoActiveConference, "")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("local_alias", localAlias).Msg("policy lookup failed")
		return reject(model.CauseNoActiveConference, "")
	}

	roomName := s.roomName(ctx, entry, patientUUID)

	return &model.PolicyResponse{
		Status: "success",
		Action: model.ActionContinue,
		Result: &model.PolicyResult{
			Name:                       roomName,
			ServiceTag:                 localAlias,
			ServiceType:                "conference",
			AllowGuests:                true,
			DirectMedia:                "best_effort",
			EnableOverlayText:          true,
			PIN:                        entry.HostPIN,
			GuestPIN:                   entry.GuestPIN,
			DisconnectOnHostDisconnect: true,
		},
	}
}

func (s *service) inferRole(role, displayName string) string {
	switch role {
	case model.RoleHost, model.RoleGuest:
		return role
	}
	if strings.HasPrefix(displayName, s.hostPrefix) {
		return model.RoleHost
	}
	return model.RoleGuest
}

func (s *service) roomName(ctx context.Context, entry *model.QueueEntry, patientUUID uuid.UUID) string {
	doctorName := s.doctorName(ctx, entry.DoctorID)
	patientName := "Guest"
	if patient, err := s.patients.GetByUUID(ctx, patientUUID); err == nil {
		patientName = patient.Name
	}
	return fmt.Sprintf("Dr. %s's Room (%s)", doctorName, patientName)
}

func (s *service) doctorName(ctx context.Context, doctorID int64) string {
	key := strconv.FormatInt(doctorID, 10)
	if name, ok := s.doctorNames.Get(key); ok {
		return name.(string)
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("doctor_id", doctorID).Msg("doctor lookup failed for room name")
		return "Unknown"
	}
	s.doctorNames.Set(key, doctor.Name, gocache.DefaultExpiration)
	return doctor.Name
}

func reject(cause, message string) *model.PolicyResponse {
	return &model.PolicyResponse{
		Status: "success",
		Action: model.ActionReject,
		Result: &model.PolicyResult{
			Disconnect:      true,
			DisconnectCause: cause,
			Message:         message,
		},
	}
}
