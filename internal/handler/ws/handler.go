package ws

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/waitroom-api/internal/handler"
	"github.com/jwalitptl/waitroom-api/internal/hub"
	"github.com/jwalitptl/waitroom-api/internal/service/doctor"
	"github.com/jwalitptl/waitroom-api/internal/service/queue"
	"github.com/jwalitptl/waitroom-api/internal/session"
	apperrors "github.com/jwalitptl/waitroom-api/pkg/errors"
	"github.com/jwalitptl/waitroom-api/pkg/worker"
)

// clientParam marks a dashboard connection; patient pages omit it.
const clientParam = "doctor"

type Handler struct {
	doctors  doctor.Service
	queue    queue.Service
	hub      hub.Hub
	pool     *worker.Pool
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	activeConnections prometheus.Gauge
}

func NewHandler(doctors doctor.Service, queueSvc queue.Service, h hub.Hub, pool *worker.Pool, logger zerolog.Logger) *Handler {
	return &Handler{
		doctors: doctors,
		queue:   queueSvc,
		hub:     h,
		pool:    pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		activeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "waitingroom_active_connections",
			Help: "Number of open waiting room websocket connections",
		}),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/waitingroom/:doctor_id", h.WaitingRoom)
}

func (h *Handler) WaitingRoom(c *gin.Context) {
	doctorID, err := strconv.ParseInt(c.Param("doctor_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor id"))
		return
	}

	if _, err := h.doctors.GetDoctor(c.Request.Context(), doctorID); err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("doctor not found"))
			return
		}
		handler.Error(c, err)
		return
	}

	fromDoctor := c.Query("client") == clientParam

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Int64("doctor_id", doctorID).Msg("websocket upgrade failed")
		return
	}

	h.activeConnections.Inc()
	defer h.activeConnections.Dec()

	sess := session.New(doctorID, fromDoctor, session.NewConn(ws), h.hub, h.queue, h.pool, h.logger)
	sess.Run(c.Request.Context())
}
