package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/handler"
	"github.com/jwalitptl/waitroom-api/internal/hub"
	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/repository"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
)

// Handler ingests the conferencing provider's call events. The provider
// retries on non-2xx and its retries are not idempotent on our side, so every
// request is acknowledged with 200 no matter what the body held.
type Handler struct {
	queue   queue.Service
	entries repository.QueueEntryRepository
	hub     hub.Hub
	logger  zerolog.Logger
}

func NewHandler(queueSvc queue.Service, entries repository.QueueEntryRepository, h hub.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		queue:   queueSvc,
		entries: entries,
		hub:     h,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sink", h.Sink)
}

func (h *Handler) Sink(c *gin.Context) {
	var event model.ProviderEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn().Err(err).Msg("malformed provider event")
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}

	status, handle := h.statusFor(event)
	if !handle {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}

	patientUUID, err := uuid.Parse(event.Data.DestinationAlias)
	if err != nil {
		h.logger.Warn().
			Str("event", event.Event).
			Str("destination_alias", event.Data.DestinationAlias).
			Msg("provider event with unusable alias")
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}

	ctx := c.Request.Context()
	entry, err := h.entries.GetByPatientUUID(ctx, patientUUID, 0, model.ActiveStatuses)
	if err != nil {
		h.logger.Debug().
			Str("event", event.Event).
			Str("destination_alias", event.Data.DestinationAlias).
			Msg("provider event for inactive conference")
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}

	changed, err := h.queue.UpdateStatusByPatient(ctx, patientUUID, entry.DoctorID, status, model.ActiveStatuses)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event.Event).Msg("provider event transition failed")
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}

	if changed {
		if err := h.hub.Publish(ctx, entry.DoctorID, model.Signal{Kind: model.SignalRefresh}); err != nil {
			h.logger.Error().Err(err).Int64("doctor_id", entry.DoctorID).Msg("refresh publish failed")
		}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// statusFor maps a provider event to the queue transition it drives. Host
// joins and leaves do not move the patient's entry.
func (h *Handler) statusFor(event model.ProviderEvent) (model.EntryStatus, bool) {
	switch event.Event {
	case model.EventParticipantConnected:
		if event.Data.Role == model.RoleGuest {
			return model.StatusInCall, true
		}
	case model.EventParticipantDisconnected:
		if event.Data.Role == model.RoleGuest {
			return model.StatusLeftCall, true
		}
	case model.EventConferenceEnded:
		return model.StatusLeftCall, true
	}
	return "", false
}
