package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/hub"
	"github.com/jwalitptl/waitroom-api/internal/model"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
	"github.com/jwalitptl/waitroom-api/pkg/worker"
)

const (
	signalBuffer    = 64
	teardownTimeout = 5 * time.Second
)

// Session is one websocket participant in a doctor's waiting room. Doctor
// dashboards and patient pages share the same command protocol; the fromDoctor
// flag comes from the route and decides how add_patient entries are attributed.
type Session struct {
	doctorID   int64
	fromDoctor bool
	conn       *Conn
	hub        hub.Hub
	queue      queue.Service
	pool       *worker.Pool
	logger     zerolog.Logger

	patientUUID uuid.UUID
	hasPatient  bool

	signals chan model.Signal
}

func New(doctorID int64, fromDoctor bool, conn *Conn, h hub.Hub, q queue.Service, pool *worker.Pool, logger zerolog.Logger) *Session {
	return &Session{
		doctorID:   doctorID,
		fromDoctor: fromDoctor,
		conn:       conn,
		hub:        h,
		queue:      q,
		pool:       pool,
		logger:     logger.With().Int64("doctor_id", doctorID).Bool("doctor_side", fromDoctor).Logger(),
		signals:    make(chan model.Signal, signalBuffer),
	}
}

// Notify implements hub.Subscriber. It never blocks the publisher; a session
// that cannot keep up drops refresh signals and catches up on the next one.
func (s *Session) Notify(sig model.Signal) {
	select {
	case s.signals <- sig:
	default:
		s.logger.Warn().Str("kind", sig.Kind).Msg("signal buffer full, dropping")
	}
}

// Run services the connection until the peer disconnects or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hub.Join(s.doctorID, s)
	go s.signalLoop(ctx)

	s.pushWaitingList(ctx)
	s.readLoop(ctx)

	cancel()
	s.hub.Leave(s.doctorID, s)
	s.teardown()
	s.conn.Close()
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd model.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.pushError("malformed message")
			continue
		}
		s.dispatch(ctx, cmd)
	}
}

func (s *Session) signalLoop(ctx context.Context) {
	for {
		select {
		case sig := <-s.signals:
			switch sig.Kind {
			case model.SignalRefresh:
				s.pushWaitingList(ctx)
			case model.SignalChat:
				s.push(model.ChatPush{
					Type:        model.PushChatMessage,
					Sender:      sig.Sender,
					Message:     sig.Message,
					PatientUUID: sig.PatientUUID,
				})
			case model.SignalDrawing:
				s.push(model.DrawingPush{
					Type:        model.PushDrawingData,
					PatientUUID: sig.PatientUUID,
					Data:        sig.Data,
				})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) dispatch(ctx context.Context, cmd model.Command) {
	switch cmd.Type {
	case model.CmdUpdateStatus:
		s.handleUpdateStatus(ctx, cmd)
	case model.CmdAddPatient:
		s.handleAddPatient(ctx, cmd)
	case model.CmdRemovePatient:
		s.handleRemovePatient(ctx, cmd)
	case model.CmdPurgeHistory:
		s.handlePurgeHistory(ctx, cmd)
	case model.CmdLeaveQueue:
		s.handleLeaveQueue(ctx, cmd)
	case model.CmdChatMessage:
		s.handleChat(ctx, cmd)
	case model.CmdDrawingData:
		s.handleDrawing(ctx, cmd)
	case model.CmdWhiteboardToggle:
		s.handleWhiteboardToggle(ctx, cmd)
	case model.CmdWhiteboardHistory:
		s.handleWhiteboardHistory(ctx, cmd)
	default:
		s.pushError("unknown message type")
	}
}

func (s *Session) handleUpdateStatus(ctx context.Context, cmd model.Command) {
	var changed bool
	err := s.pool.Do(ctx, func() error {
		var err error
		changed, err = s.queue.UpdateStatusByEntry(ctx, cmd.EntryID, s.doctorID, cmd.Status)
		return err
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not update status"))
		return
	}
	if changed {
		s.publishRefresh(ctx)
	}
}

func (s *Session) handleAddPatient(ctx context.Context, cmd model.Command) {
	var res *queue.CreateResult
	err := s.pool.Do(ctx, func() error {
		var err error
		res, err = s.queue.CreateEntry(ctx, s.doctorID, cmd.PatientName, cmd.PatientUUID, s.fromDoctor)
		return err
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not add patient"))
		return
	}

	// A patient tab now represents this identity; record it so the entry is
	// marked Left Call when the socket drops.
	if !s.fromDoctor {
		s.patientUUID = res.PatientUUID
		s.hasPatient = true
	}

	if res.Created {
		s.publishRefresh(ctx)
	}
}

func (s *Session) handleRemovePatient(ctx context.Context, cmd model.Command) {
	err := s.pool.Do(ctx, func() error {
		return s.queue.RemoveEntry(ctx, cmd.EntryID, s.doctorID)
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not remove patient"))
		return
	}
	s.publishRefresh(ctx)
}

func (s *Session) handlePurgeHistory(ctx context.Context, cmd model.Command) {
	if cmd.DoctorID != s.doctorID {
		s.pushError("not authorized to purge this room's history")
		return
	}
	err := s.pool.Do(ctx, func() error {
		_, err := s.queue.PurgeHistory(ctx, s.doctorID)
		return err
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not purge history"))
		return
	}
	s.publishRefresh(ctx)
}

func (s *Session) handleLeaveQueue(ctx context.Context, cmd model.Command) {
	patientUUID, err := uuid.Parse(cmd.PatientUUID)
	if err != nil {
		s.pushError("invalid patient identifier")
		return
	}
	doctorID := cmd.DoctorID
	if doctorID == 0 {
		doctorID = s.doctorID
	}
	var changed bool
	err = s.pool.Do(ctx, func() error {
		var err error
		changed, err = s.queue.UpdateStatusByPatient(ctx, patientUUID, doctorID, model.StatusCancelled, model.ActiveStatuses)
		return err
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not leave queue"))
		return
	}
	if changed {
		s.publishRefresh(ctx)
	}
}

func (s *Session) handleChat(ctx context.Context, cmd model.Command) {
	if err := s.hub.Publish(ctx, s.doctorID, model.Signal{
		Kind:        model.SignalChat,
		Sender:      cmd.Sender,
		Message:     cmd.Message,
		PatientUUID: cmd.PatientUUID,
	}); err != nil {
		s.logger.Error().Err(err).Msg("chat publish failed")
	}
}

func (s *Session) handleDrawing(ctx context.Context, cmd model.Command) {
	if patientUUID, err := uuid.Parse(cmd.PatientUUID); err == nil {
		if err := s.pool.Do(ctx, func() error {
			return s.queue.AppendWhiteboardStroke(ctx, patientUUID, s.doctorID, cmd.Data)
		}); err != nil {
			s.logger.Warn().Err(err).Msg("stroke not persisted")
		}
	}
	if err := s.hub.Publish(ctx, s.doctorID, model.Signal{
		Kind:        model.SignalDrawing,
		Data:        cmd.Data,
		PatientUUID: cmd.PatientUUID,
	}); err != nil {
		s.logger.Error().Err(err).Msg("drawing publish failed")
	}
}

func (s *Session) handleWhiteboardToggle(ctx context.Context, cmd model.Command) {
	patientUUID, err := uuid.Parse(cmd.PatientUUID)
	if err != nil {
		s.pushError("invalid patient identifier")
		return
	}
	err = s.pool.Do(ctx, func() error {
		if err := s.queue.SetWhiteboardActive(ctx, patientUUID, s.doctorID, cmd.IsActive); err != nil {
			return err
		}
		// A closed whiteboard starts blank when reopened.
		if !cmd.IsActive {
			return s.queue.ClearWhiteboard(ctx, patientUUID, s.doctorID)
		}
		return nil
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not toggle whiteboard"))
		return
	}
	s.publishRefresh(ctx)
}

func (s *Session) handleWhiteboardHistory(ctx context.Context, cmd model.Command) {
	patientUUID, err := uuid.Parse(cmd.PatientUUID)
	if err != nil {
		s.pushError("invalid patient identifier")
		return
	}
	var strokes []json.RawMessage
	err = s.pool.Do(ctx, func() error {
		var err error
		strokes, err = s.queue.WhiteboardHistory(ctx, patientUUID, s.doctorID)
		return err
	})
	if err != nil {
		s.pushError(errorMessage(err, "could not load whiteboard history"))
		return
	}
	s.push(model.WhiteboardHistoryPush{
		Type:        model.PushWhiteboardHistory,
		PatientUUID: cmd.PatientUUID,
		Data:        strokes,
	})
}

// teardown marks the patient as having left the call. It runs after the
// connection drops, so it gets its own deadline instead of the conn context.
func (s *Session) teardown() {
	if !s.hasPatient {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	var changed bool
	err := s.pool.Do(ctx, func() error {
		var err error
		changed, err = s.queue.UpdateStatusByPatient(ctx, s.patientUUID, s.doctorID, model.StatusLeftCall, model.ActiveStatuses)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("disconnect status update failed")
		return
	}
	if changed {
		if err := s.hub.Publish(ctx, s.doctorID, model.Signal{Kind: model.SignalRefresh}); err != nil {
			s.logger.Error().Err(err).Msg("disconnect refresh publish failed")
		}
	}
}

func (s *Session) pushWaitingList(ctx context.Context) {
	var entries []*model.EntrySnapshot
	err := s.pool.Do(ctx, func() error {
		var err error
		entries, err = s.queue.WaitingList(ctx, s.doctorID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("waiting list fetch failed")
		return
	}
	s.push(model.WaitingListPush{
		Type: model.PushWaitingList,
		Data: entries,
	})
}

func (s *Session) publishRefresh(ctx context.Context) {
	if err := s.hub.Publish(ctx, s.doctorID, model.Signal{Kind: model.SignalRefresh}); err != nil {
		s.logger.Error().Err(err).Msg("refresh publish failed")
	}
}

func (s *Session) push(v interface{}) {
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug().Err(err).Msg("push failed")
	}
}

func (s *Session) pushError(msg string) {
	s.push(model.ErrorPush{Type: model.PushError, Message: msg})
}

func errorMessage(err error, fallback string) string {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
